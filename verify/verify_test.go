package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-signing-secret"

func sign(r *http.Request, body string, ts time.Time) {
	stamp := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(fmt.Sprintf("v0:%s:%s", stamp, body)))

	r.Header.Set("X-Slack-Request-Timestamp", stamp)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

func newTestEngine(seen *[]byte, reread *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/hook", Middleware(testSecret), func(c *gin.Context) {
		*seen = RawBody(c)
		b, _ := io.ReadAll(c.Request.Body)
		*reread = string(b)
		c.Status(http.StatusOK)
	})
	return engine
}

func TestMiddleware_ValidSignature(t *testing.T) {
	var seen []byte
	var reread string
	engine := newTestEngine(&seen, &reread)

	body := "command=%2Fdeploy&text=prod"
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	sign(req, body, time.Now())
	rr := httptest.NewRecorder()

	engine.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, body, string(seen))
	assert.Equal(t, body, reread, "body must be rewound for downstream parsers")
}

func TestMiddleware_Rejections(t *testing.T) {
	body := `{"type":"url_verification","challenge":"abc"}`

	cases := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{
			name:    "missing headers",
			prepare: func(r *http.Request) {},
			want:    http.StatusUnauthorized,
		},
		{
			name: "bad signature",
			prepare: func(r *http.Request) {
				r.Header.Set("X-Slack-Request-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
				r.Header.Set("X-Slack-Signature", "v0=invalidsignature")
			},
			want: http.StatusUnauthorized,
		},
		{
			name:    "stale timestamp",
			prepare: func(r *http.Request) { sign(r, body, time.Now().Add(-10*time.Minute)) },
			want:    http.StatusUnauthorized,
		},
		{
			name: "tampered body",
			prepare: func(r *http.Request) {
				sign(r, `{"type":"url_verification","challenge":"xyz"}`, time.Now())
			},
			want: http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen []byte
			var reread string
			engine := newTestEngine(&seen, &reread)

			req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
			tc.prepare(req)
			rr := httptest.NewRecorder()

			engine.ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Code)
			assert.Nil(t, seen, "handler must not run")
		})
	}
}

func TestRawBody_Absent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, RawBody(c))
}
