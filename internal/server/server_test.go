package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dealfeed/internal/affiliate"
	"dealfeed/internal/dealstore"
	logpkg "dealfeed/internal/logger"
	"dealfeed/internal/model"
	"dealfeed/internal/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminKey   = "test-admin-key"
	testAuthSecret = "0123456789abcdef0123456789abcdef"
)

// countingAwarder records point awards so tests can assert idempotence.
type countingAwarder struct {
	mu     sync.Mutex
	awards map[string]int
}

func (a *countingAwarder) Award(_ context.Context, userID string, points int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.awards == nil {
		a.awards = map[string]int{}
	}
	a.awards[userID] += points
	return nil
}

func (a *countingAwarder) total(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.awards[userID]
}

func newTestServer(t *testing.T) (Server, *countingAwarder) {
	t.Helper()
	return newTestServerWith(t, ratelimit.NewMemoryLimiter(600, 100), false)
}

func newTestServerWith(t *testing.T, limiter ratelimit.Limiter, allowReset bool) (Server, *countingAwarder) {
	t.Helper()
	require := require.New(t)

	log := logpkg.NewLogger(logpkg.LevelOff, io.Discard)
	store, err := dealstore.NewFileStore(t.TempDir(), allowReset, log)
	require.NoError(err)

	secretKey, err := jwk.FromRaw([]byte(testAuthSecret))
	require.NoError(err)
	adminHash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(err)

	awarder := &countingAwarder{}
	s := Server{
		Store: store,
		Affiliates: affiliate.Resolver{
			Amazon: map[model.Country]affiliate.AmazonProgram{
				model.CountryCA: {Domain: "www.amazon.ca", Tag: "deals-ca-20"},
				model.CountryUS: {Domain: "www.amazon.com", Tag: "deals-us-20"},
			},
			EBay: map[model.Country]affiliate.EBayProgram{
				model.CountryCA: {Domain: "www.ebay.ca", CampID: "5338", MkCID: "1", MkRID: "706", ToolID: "10001"},
			},
		},
		Limiter:       limiter,
		Duplicates:    ratelimit.NewMemoryWindow(time.Minute),
		Points:        awarder,
		Validate:      validator.New(),
		Logger:        log,
		AuthSecretKey: secretKey,
		AdminKeyHash:  adminHash,
		ApprovePoints: 25,
	}
	return s, awarder
}

// seedDeal writes a deal straight into the store, bypassing submission.
func seedDeal(t *testing.T, s Server, c model.Country, d model.Deal) model.Deal {
	t.Helper()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.Country = c
	err := s.Store.Mutate(c, func(st *model.Store) error {
		st.Deals = append(st.Deals, d)
		return nil
	})
	require.NoError(t, err)
	return d
}

func userToken(t *testing.T, s Server, userID string) string {
	t.Helper()
	require := require.New(t)

	tok, err := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.AuthSecretKey))
	require.NoError(err)
	return string(signed)
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}
