package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/cask/client"
	"github.com/luma/cask/internal/env"
	"github.com/luma/cask/storage"
)

var _ = Describe("serve", func() {
	Describe("admin router", func() {
		var (
			store *storage.InmemoryStore
			srv   *httptest.Server
		)

		BeforeEach(func() {
			store = storage.NewInmemoryStore()
			Expect(store.Set(context.Background(), []byte("foo"), []byte("bar"))).To(Succeed())

			srv = httptest.NewServer(setupRouter(false, store, zap.NewNop()))
		})

		AfterEach(func() {
			srv.Close()
			store.Close()
		})

		get := func(path string) (int, string) {
			resp, err := http.Get(srv.URL + path)
			Expect(err).To(Succeed())
			defer resp.Body.Close()

			body := new(bytes.Buffer)
			_, err = body.ReadFrom(resp.Body)
			Expect(err).To(Succeed())

			return resp.StatusCode, body.String()
		}

		It("answers pings", func() {
			status, body := get("/ping")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("pong"))
		})

		It("serves stored values", func() {
			status, body := get("/keys/foo")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("bar"))
		})

		It("returns 404 for missing keys", func() {
			status, _ := get("/keys/nope")
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("serves a snapshot of the store", func() {
			status, body := get("/snapshot")
			Expect(status).To(Equal(http.StatusOK))
			Expect(gjson.Get(body, "entries.#").Int()).To(Equal(int64(1)))
		})
	})

	Describe("clientConfig()", func() {
		It("reads until close within the read budget by default", func() {
			cfg := clientConfig(&env.Config{Host: "10.0.0.1", Port: 7000, Timeout: time.Second, ReadBudget: 42})

			Expect(cfg.Addr()).To(Equal("10.0.0.1:7000"))
			Expect(cfg.Timeout).To(Equal(time.Second))
			Expect(cfg.ResponseReader).To(Equal(client.UntilClose{Limit: 42}))
		})

		It("uses framed replies when configured", func() {
			cfg := clientConfig(&env.Config{FramedReplies: true})
			Expect(cfg.ResponseReader).To(Equal(client.Framed{}))
		})
	})
})
