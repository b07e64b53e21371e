package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/logger"
	"github.com/papercomputeco/reflex/pkg/memoryapi"
	"github.com/papercomputeco/reflex/pkg/pattern"
	"github.com/papercomputeco/reflex/pkg/storage"
	"github.com/papercomputeco/reflex/pkg/storage/inmemory"
)

func doJSON(server *Server, method, path string, body any, token string) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	respBody, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, respBody
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		server = NewServer(Config{ListenAddr: ":0", AccessToken: "secret"}, driver, logger.Nop())
	})

	It("answers ping without a token", func() {
		resp, body := doJSON(server, http.MethodGet, "/ping", nil, "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("bearer auth", func() {
		It("rejects a missing token", func() {
			resp, body := doJSON(server, http.MethodGet, memoryapi.PatternsPath, nil, "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))

			var errResp memoryapi.ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Error).To(ContainSubstring("bearer"))
		})

		It("rejects a wrong token", func() {
			resp, _ := doJSON(server, http.MethodGet, memoryapi.PatternsPath, nil, "nope")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
		})

		It("accepts any caller when no token is configured", func() {
			open := NewServer(Config{}, driver, logger.Nop())
			resp, _ := doJSON(open, http.MethodGet, memoryapi.PatternsPath, nil, "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("POST /memory/capture", func() {
		It("stores the exchange", func() {
			resp, body := doJSON(server, http.MethodPost, memoryapi.CapturePath, memoryapi.CaptureRequest{
				UserQuery:         "how do I test this?",
				AssistantResponse: "use a table",
				SessionID:         "s1",
				UserID:            "u1",
				PatternsRetrieved: []string{"p1", "p2"},
				PatternsApplied:   []string{"p1"},
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var out memoryapi.CaptureResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.CaptureID).NotTo(BeEmpty())
			Expect(out.Status).To(Equal("stored"))

			captures, err := driver.Captures(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(captures).To(HaveLen(1))
			Expect(captures[0].ID).To(Equal(out.CaptureID))
			Expect(captures[0].PatternsApplied).To(Equal([]string{"p1"}))
		})

		It("requires a session id", func() {
			resp, _ := doJSON(server, http.MethodPost, memoryapi.CapturePath, memoryapi.CaptureRequest{
				UserQuery: "q", AssistantResponse: "r",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("requires both sides of the exchange", func() {
			resp, _ := doJSON(server, http.MethodPost, memoryapi.CapturePath, memoryapi.CaptureRequest{
				UserQuery: "q", SessionID: "s1",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("lists captures by session", func() {
			doJSON(server, http.MethodPost, memoryapi.CapturePath, memoryapi.CaptureRequest{
				UserQuery: "q1", AssistantResponse: "r1", SessionID: "s1",
			}, "secret")
			doJSON(server, http.MethodPost, memoryapi.CapturePath, memoryapi.CaptureRequest{
				UserQuery: "q2", AssistantResponse: "r2", SessionID: "s2",
			}, "secret")

			resp, body := doJSON(server, http.MethodGet, "/memory/captures?session_id=s2", nil, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out []memoryapi.CaptureRequest
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out).To(HaveLen(1))
			Expect(out[0].UserQuery).To(Equal("q2"))
		})
	})

	Describe("POST /patterns and POST /context/retrieve", func() {
		It("forges a pattern that retrieval then returns", func() {
			resp, body := doJSON(server, http.MethodPost, memoryapi.PatternsPath, memoryapi.ForgeRequest{
				Title:    "Retry flaky network calls",
				Problem:  "intermittent timeouts",
				Solution: "exponential backoff",
				Tags:     []string{"forged"},
				Source:   "stop",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var forged memoryapi.ForgeResponse
			Expect(json.Unmarshal(body, &forged)).To(Succeed())
			Expect(forged.PatternID).To(HavePrefix("pat-"))

			resp, body = doJSON(server, http.MethodPost, memoryapi.RetrievePath, memoryapi.RetrieveRequest{
				Query:     "my network calls time out",
				SessionID: "s1",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out memoryapi.RetrieveResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Patterns).To(HaveLen(1))
			Expect(out.Patterns[0].ID).To(Equal(forged.PatternID))
			Expect(out.Patterns[0].Title).To(Equal("Retry flaky network calls"))
		})

		It("requires a title", func() {
			resp, _ := doJSON(server, http.MethodPost, memoryapi.PatternsPath, memoryapi.ForgeRequest{
				Problem: "p",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns an empty list when nothing matches", func() {
			resp, body := doJSON(server, http.MethodPost, memoryapi.RetrievePath, memoryapi.RetrieveRequest{
				Query: "nothing stored yet",
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"patterns":[]`))
		})

		It("honours the request limit", func() {
			for _, title := range []string{"cache warmup", "cache eviction", "cache sizing"} {
				Expect(driver.PutPattern(ctx, &storage.Pattern{ID: title, Title: title})).To(Succeed())
			}

			_, body := doJSON(server, http.MethodPost, memoryapi.RetrievePath, memoryapi.RetrieveRequest{
				Query: "cache", Limit: 2,
			}, "secret")

			var out memoryapi.RetrieveResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Patterns).To(HaveLen(2))
		})

		It("gets a pattern by id", func() {
			Expect(driver.PutPattern(ctx, &storage.Pattern{ID: "p1", Title: "One"})).To(Succeed())

			resp, body := doJSON(server, http.MethodGet, memoryapi.PatternsPath+"/p1", nil, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var p pattern.Pattern
			Expect(json.Unmarshal(body, &p)).To(Succeed())
			Expect(p.Title).To(Equal("One"))

			resp, _ = doJSON(server, http.MethodGet, memoryapi.PatternsPath+"/missing", nil, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("POST /reflex/log", func() {
		It("stores the turn summary", func() {
			ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			resp, _ := doJSON(server, http.MethodPost, memoryapi.ReflexLogPath, memoryapi.ReflexLogEvent{
				SessionID:         "s1",
				PatternsRetrieved: 2,
				PatternsApplied:   1,
				Coverage:          0.5,
				Timestamp:         ts,
			}, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

			resp, body := doJSON(server, http.MethodGet, memoryapi.ReflexLogPath+"?session_id=s1", nil, "secret")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out []memoryapi.ReflexLogEvent
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out).To(HaveLen(1))
			Expect(out[0].Coverage).To(BeNumerically("~", 0.5))
			Expect(out[0].Timestamp.Equal(ts)).To(BeTrue())
		})

		It("rejects a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, memoryapi.ReflexLogPath, bytes.NewReader([]byte("{")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer secret")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("with the memory API client", func() {
		It("serves every call the hooks make", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() {
				defer GinkgoRecover()
				_ = server.Serve(ln)
			}()
			DeferCleanup(func() {
				Expect(server.Shutdown()).To(Succeed())
			})

			client := memoryapi.NewClient(memoryapi.ClientConfig{
				BaseURL:     "http://" + ln.Addr().String(),
				AccessToken: "secret",
				UserID:      "u1",
			})

			forged, err := client.ForgePattern(ctx, memoryapi.ForgeRequest{
				Title: "Use table tests", Problem: "repetitive test cases",
			})
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := client.Retrieve(ctx, memoryapi.RetrieveRequest{Query: "repetitive test cases", SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Patterns).To(HaveLen(1))
			Expect(retrieved.Patterns[0].ID).To(Equal(forged.PatternID))

			_, err = client.Capture(ctx, memoryapi.CaptureRequest{
				UserQuery: "q", AssistantResponse: "r", SessionID: "s1",
				PatternsRetrieved: []string{forged.PatternID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.LogReflex(ctx, memoryapi.ReflexLogEvent{SessionID: "s1", PatternsRetrieved: 1})).To(Succeed())

			captures, err := driver.Captures(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(captures).To(HaveLen(1))
			Expect(captures[0].UserID).To(Equal("u1"))

			logs, err := driver.ReflexLogs(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))

			bad := memoryapi.NewClient(memoryapi.ClientConfig{
				BaseURL:     "http://" + ln.Addr().String(),
				AccessToken: "wrong",
			})
			_, err = bad.Retrieve(ctx, memoryapi.RetrieveRequest{Query: "x"})
			var statusErr *memoryapi.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})
