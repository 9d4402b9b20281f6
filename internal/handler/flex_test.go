package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexDecoding(t *testing.T) {
	var v struct {
		ID  flexID  `json:"id"`
		Qty flexInt `json:"qty"`
	}
	cases := []struct {
		in  string
		id  uint64
		qty int
	}{
		{`{"id":7,"qty":2}`, 7, 2},
		{`{"id":"7","qty":"3"}`, 7, 3},
		{`{"id":"abc","qty":2.9}`, 0, 2},
		{`{"id":-4,"qty":null}`, 0, 0},
		{`{"id":true,"qty":"x"}`, 0, 0},
	}
	for _, tc := range cases {
		v.ID, v.Qty = 0, 0
		require.NoError(t, json.Unmarshal([]byte(tc.in), &v), tc.in)
		assert.Equal(t, tc.id, uint64(v.ID), tc.in)
		assert.Equal(t, tc.qty, int(v.Qty), tc.in)
	}
}
