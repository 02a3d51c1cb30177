package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/user/market-intel-service/internal/entity"
)

func TestOAuthExchangerSuccess(t *testing.T) {
	g := NewWithT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		g.Expect(ok).To(BeTrue())
		g.Expect(user).To(Equal("client-id"))
		g.Expect(pass).To(Equal("client-secret"))
		g.Expect(r.ParseForm()).To(Succeed())
		g.Expect(r.PostForm.Get("grant_type")).To(Equal("client_credentials"))
		g.Expect(r.PostForm.Get("scope")).To(Equal("https://api.example.com/oauth/api_scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":7200,"token_type":"Application Access Token"}`))
	}))
	defer srv.Close()

	ex := NewOAuthExchanger(srv.URL, "client-id", "client-secret", "https://api.example.com/oauth/api_scope", 5*time.Second)
	before := time.Now()
	tok, err := ex.Exchange(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tok.Value).To(Equal("app-token"))
	g.Expect(tok.Expiry).To(BeTemporally("~", before.Add(2*time.Hour), time.Minute))
}

func TestOAuthExchangerUnconfigured(t *testing.T) {
	g := NewWithT(t)
	ex := NewOAuthExchanger("http://127.0.0.1:1/token", "", "", "", time.Second)
	_, err := ex.Exchange(context.Background())
	g.Expect(errors.Is(err, entity.ErrUnauthorized)).To(BeTrue())
}

func TestOAuthExchangerRejected(t *testing.T) {
	g := NewWithT(t)
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	ex := NewOAuthExchanger(srv.URL, "id", "bad", "", 5*time.Second)
	_, err := ex.Exchange(context.Background())
	g.Expect(errors.Is(err, entity.ErrUnauthorized)).To(BeTrue())

	status.Store(http.StatusServiceUnavailable)
	_, err = ex.Exchange(context.Background())
	g.Expect(errors.Is(err, entity.ErrExternalService)).To(BeTrue())
}
