package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cliora-storefront/internal/memstore"
	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/payment"
	"github.com/iliyamo/cliora-storefront/internal/service"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

const whsec = "whsec_handler_test"

type app struct {
	e      *echo.Echo
	st     *memstore.Store
	iss    *utils.TokenIssuer
	gw     *memstore.Gateway
	pub    *memstore.Publisher
	images *memstore.Images
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		e:      echo.New(),
		st:     memstore.New(),
		iss:    utils.NewTokenIssuer("handler-secret", 15*time.Minute, 7*24*time.Hour),
		gw:     &memstore.Gateway{},
		pub:    &memstore.Publisher{},
		images: &memstore.Images{},
	}
	orders := service.NewOrderService(a.st, a.pub, 24*time.Hour)
	ah := NewAuthHandler(service.NewAuthService(a.st, a.st, a.iss, bcrypt.MinCost), true, 7*24*time.Hour)
	ph := NewProductHandler(service.NewCatalogService(a.st, a.images, nil, "GBP"))
	ch := NewCartHandler(service.NewCartService(a.st))
	co := NewCheckoutHandler(service.NewCheckoutService(a.st, a.gw, "GBP", decimal.RequireFromString("0.2")), orders, payment.NewWebhook(whsec))
	oh := NewOrderHandler(orders)

	auth := middleware.JWTAuth(a.iss)
	admin := []echo.MiddlewareFunc{auth, middleware.RequireAdmin()}
	e := a.e
	e.GET("/healthz", Health)
	e.GET("/", Root)
	e.POST("/api/auth/register", ah.Register)
	e.POST("/api/auth/login", ah.Login)
	e.POST("/api/auth/refresh", ah.Refresh)
	e.POST("/api/auth/logout", ah.Logout)
	e.GET("/api/auth/me", ah.Me, auth)
	e.GET("/api/products", ph.List)
	e.GET("/api/products/:id", ph.Get)
	e.GET("/api/categories", ph.Categories)
	e.POST("/api/products", ph.Create, admin...)
	e.PUT("/api/products/:id", ph.Update, admin...)
	e.DELETE("/api/products/:id", ph.Delete, admin...)
	e.GET("/api/cart", ch.Get, auth)
	e.POST("/api/cart", ch.Upsert, auth)
	e.POST("/api/checkout/session", co.Session, middleware.OptionalJWT(a.iss))
	e.POST("/api/stripe/webhook", co.Webhook)
	e.GET("/api/orders/me", oh.Mine, auth)
	e.GET("/api/orders", oh.List, admin...)
	e.PATCH("/api/orders/:id", oh.Update, admin...)
	return a
}

func (a *app) token(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := a.iss.NewAccessToken(id, role, "u@x.y")
	require.NoError(t, err)
	return tok.Token
}

type call struct {
	method, path, body, token string
	contentType               string
	cookies                   []*http.Cookie
	header                    map[string]string
}

func (a *app) do(c call) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	ct := c.contentType
	if ct == "" && c.body != "" {
		ct = echo.MIMEApplicationJSON
	}
	if ct != "" {
		req.Header.Set(echo.HeaderContentType, ct)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func refreshCookieOf(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == refreshCookie {
			return ck
		}
	}
	return nil
}

func TestProbes(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, "ok", a.do(call{method: http.MethodGet, path: "/healthz"}).Body.String())
	assert.Equal(t, "Cliora API OK", a.do(call{method: http.MethodGet, path: "/"}).Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(call{method: http.MethodPost, path: "/api/auth/register",
		body: `{"name":"Ada","email":"Ada@X.io","password":"pw"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ada@x.io", user["email"])
	assert.Equal(t, "customer", user["role"])

	ck := refreshCookieOf(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, 7*24*3600, ck.MaxAge)

	rec = a.do(call{method: http.MethodPost, path: "/api/auth/register",
		body: `{"name":"Ada","email":"ada@x.io","password":"pw"}`})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"message":"Email already registered"}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookies: []*http.Cookie{ck}})
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode(t, rec)["token"].(string)

	rec = a.do(call{method: http.MethodGet, path: "/api/auth/me", token: access})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode(t, rec)["name"])

	rec = a.do(call{method: http.MethodPost, path: "/api/auth/logout", cookies: []*http.Cookie{ck}})
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	cleared := refreshCookieOf(rec)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	rec = a.do(call{method: http.MethodPost, path: "/api/auth/refresh", cookies: []*http.Cookie{ck}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/api/auth/refresh"})
	assert.JSONEq(t, `{"message":"Missing refresh token"}`, rec.Body.String())
}

func TestLoginErrors(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"x@y.z"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"x@y.z","password":"p"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
	rec = a.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeForDeletedAccountIsNull(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodGet, path: "/api/auth/me", token: a.token(t, 999, model.RoleCustomer)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestCartEndpoints(t *testing.T) {
	a := newApp(t)
	p1 := a.st.SeedProduct("Dress", 4000, "GBP", "/uploads/d.jpg")
	p2 := a.st.SeedProduct("Top", 1500, "GBP", "")
	tok := a.token(t, 11, model.RoleCustomer)

	assert.Equal(t, http.StatusUnauthorized, a.do(call{method: http.MethodGet, path: "/api/cart"}).Code)

	body := `{"items":[{"product_id":"` + itoa(p1.ID) + `","quantity":"2"},{"product_id":` + itoa(p2.ID) + `,"quantity":1},{"product_id":"nope","quantity":1}]}`
	rec := a.do(call{method: http.MethodPost, path: "/api/cart", token: tok, body: body})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = a.do(call{method: http.MethodGet, path: "/api/cart", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 2)
	var dress map[string]any
	for _, it := range got.Items {
		if uint64(it["product_id"].(float64)) == p1.ID {
			dress = it
		}
	}
	require.NotNil(t, dress)
	assert.EqualValues(t, 2, dress["quantity"])
	assert.EqualValues(t, 4000, dress["unit_price_cents"])
	assert.Equal(t, "/uploads/d.jpg", dress["image"])

	rec = a.do(call{method: http.MethodPost, path: "/api/cart", token: tok, body: `{"items":[]}`})
	assert.JSONEq(t, `{"ok":true,"items":[]}`, rec.Body.String())
}

func TestCheckoutEndpoint(t *testing.T) {
	a := newApp(t)
	p := a.st.SeedProduct("Coat", 9000, "GBP", "")

	rec := a.do(call{method: http.MethodPost, path: "/api/checkout/session",
		body: `{"address":{"name":"G","email":"g@x.y","line1":"1 Rd","city":"York","postal_code":"YO1"},"items":[{"id":"` + itoa(p.ID) + `","qty":2,"price_cents":1}]}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec)["url"], "https://pay.test/session/")
	require.Len(t, a.gw.Sessions, 1)
	guest, _, _ := a.st.Order(a.gw.Sessions[0].OrderID)
	assert.Nil(t, guest.UserID)
	assert.Equal(t, int64(18000), guest.TotalCents)
	require.NotNil(t, guest.PostalCode)
	assert.Equal(t, "YO1", *guest.PostalCode)

	rec = a.do(call{method: http.MethodPost, path: "/api/checkout/session", token: a.token(t, 5, model.RoleCustomer),
		body: `{"items":[{"id":` + itoa(p.ID) + `}]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	mine, _, _ := a.st.Order(a.gw.Sessions[1].OrderID)
	require.NotNil(t, mine.UserID)
	assert.Equal(t, uint64(5), *mine.UserID)
	assert.Equal(t, int64(9000), mine.TotalCents)

	before := a.st.OrderCount()
	rec = a.do(call{method: http.MethodPost, path: "/api/checkout/session",
		body: `{"items":[{"id":` + itoa(p.ID) + `,"qty":1},{"id":"999999","qty":1}]}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid item in cart"}`, rec.Body.String())
	assert.Equal(t, before, a.st.OrderCount())

	rec = a.do(call{method: http.MethodPost, path: "/api/checkout/session", body: `{"items":[]}`})
	assert.JSONEq(t, `{"message":"No items"}`, rec.Body.String())

	a.gw.Err = errors.New("processor down")
	rec = a.do(call{method: http.MethodPost, path: "/api/checkout/session", body: `{"items":[{"id":` + itoa(p.ID) + `}]}`})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Could not start checkout"}`, rec.Body.String())
}

func signedEvent(t *testing.T, orderID uint64, intent string) (string, string) {
	t.Helper()
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","metadata":{"order_id":"` + itoa(orderID) + `"},"payment_intent":"` + intent + `"}}}`
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: whsec})
	return string(sp.Payload), sp.Header
}

func TestWebhookEndpoint(t *testing.T) {
	a := newApp(t)
	p := a.st.SeedProduct("Coat", 9000, "GBP", "")
	rec := a.do(call{method: http.MethodPost, path: "/api/checkout/session", body: `{"items":[{"id":` + itoa(p.ID) + `}]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := a.gw.Sessions[0].OrderID

	payload, sig := signedEvent(t, orderID, "pi_9")
	for i := 0; i < 2; i++ {
		rec = a.do(call{method: http.MethodPost, path: "/api/stripe/webhook", body: payload, header: map[string]string{"Stripe-Signature": sig}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}
	o, _, _ := a.st.Order(orderID)
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	assert.Len(t, a.pub.Published(), 1)

	payload, sig = signedEvent(t, 424242, "pi_x")
	rec = a.do(call{method: http.MethodPost, path: "/api/stripe/webhook", body: payload, header: map[string]string{"Stripe-Signature": sig}})
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPost, path: "/api/stripe/webhook", body: payload, header: map[string]string{"Stripe-Signature": "t=1,v1=bad"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.st.Fail["MarkOrderPaid"] = errors.New("db gone")
	payload, sig = signedEvent(t, orderID, "pi_9")
	rec = a.do(call{method: http.MethodPost, path: "/api/stripe/webhook", body: payload, header: map[string]string{"Stripe-Signature": sig}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"received":false}`, rec.Body.String())

	big := strings.Repeat("x", maxWebhookBody+1)
	rec = a.do(call{method: http.MethodPost, path: "/api/stripe/webhook", body: big, header: map[string]string{"Stripe-Signature": sig}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, images int) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i := 0; i < images; i++ {
		fw, err := w.CreateFormFile("images", "img.png")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("fake-image"))
	}
	require.NoError(t, w.Close())
	return buf.String(), w.FormDataContentType()
}

func TestAdminProducts(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, 1, model.RoleAdmin)
	customer := a.token(t, 2, model.RoleCustomer)

	body, ct := multipartBody(t, map[string]string{"name": "Wrap", "slug": "wrap", "price_cents": "12.50"}, 2)
	rec := a.do(call{method: http.MethodPost, path: "/api/products", body: body, contentType: ct, token: customer})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/api/products", body: body, contentType: ct, token: admin})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.EqualValues(t, 1250, created["price_cents"])
	assert.Equal(t, "/uploads/img-1.jpg", created["image"])
	id := uint64(created["id"].(float64))

	rec = a.do(call{method: http.MethodPost, path: "/api/products", body: body, contentType: ct, token: admin})
	assert.Equal(t, http.StatusConflict, rec.Code)

	body, ct = multipartBody(t, map[string]string{"name": "Wrap", "slug": "Bad Slug", "price_cents": "1"}, 0)
	rec = a.do(call{method: http.MethodPost, path: "/api/products", body: body, contentType: ct, token: admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, map[string]string{"name": "Wrap 2", "slug": "wrap", "price_cents": "1500"}, 0)
	rec = a.do(call{method: http.MethodPut, path: "/api/products/" + itoa(id), body: body, contentType: ct, token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Wrap 2", decode(t, rec)["name"])

	rec = a.do(call{method: http.MethodPut, path: "/api/products/98765", body: body, contentType: ct, token: admin})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/api/products?sort=price_desc"})
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.EqualValues(t, 1, page["total"])
	assert.EqualValues(t, 12, page["pageSize"])

	rec = a.do(call{method: http.MethodDelete, path: "/api/products/" + itoa(id), token: admin})
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	rec = a.do(call{method: http.MethodGet, path: "/api/products/" + itoa(id)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not found"}`, rec.Body.String())
}

func TestCategoriesEndpoint(t *testing.T) {
	a := newApp(t)
	a.st.SeedCategory("Tops", "tops")
	rec := a.do(call{method: http.MethodGet, path: "/api/categories"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"tops"`)
}

func TestOrderEndpoints(t *testing.T) {
	a := newApp(t)
	p := a.st.SeedProduct("Scarf", 2400, "GBP", "")
	buyer := a.token(t, 8, model.RoleCustomer)
	admin := a.token(t, 1, model.RoleAdmin)

	rec := a.do(call{method: http.MethodPost, path: "/api/checkout/session", token: buyer, body: `{"items":[{"id":` + itoa(p.ID) + `,"qty":1}]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := a.gw.Sessions[0].OrderID

	rec = a.do(call{method: http.MethodGet, path: "/api/orders/me", token: buyer})
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Orders []model.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, int64(400), mine.Orders[0].VATCents)
	require.Len(t, mine.Orders[0].Items, 1)
	assert.Equal(t, "Scarf", *mine.Orders[0].Items[0].Name)

	assert.Equal(t, http.StatusForbidden, a.do(call{method: http.MethodGet, path: "/api/orders", token: buyer}).Code)

	rec = a.do(call{method: http.MethodGet, path: "/api/orders?status=pending", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = a.do(call{method: http.MethodPatch, path: "/api/orders/" + itoa(orderID), token: admin, body: `{}`})
	assert.JSONEq(t, `{"message":"No fields to update"}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPatch, path: "/api/orders/" + itoa(orderID), token: admin, body: `{"status":"shipped"}`})
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	o, _, _ := a.st.Order(orderID)
	assert.Equal(t, "shipped", o.Status)

	rec = a.do(call{method: http.MethodPatch, path: "/api/orders/77777", token: admin, body: `{"status":"x"}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
