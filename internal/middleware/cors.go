package middleware

import (
	"net/http"
	"strings"
)

// corsAllowedMethods は登録APIが受け付けるメソッド。
const corsAllowedMethods = "GET, POST, DELETE, OPTIONS"

// NewCORSMiddleware はCORSミドルウェアを返す。
//
// allowedOriginsはカンマ区切りのオリジン一覧。リクエストのOriginが一覧にあればそれを返し、
// なければ先頭のオリジンを返す（ブラウザ側で拒否される）。
// 登録Cookieを送信させるため、ワイルドカード(*)は使用しない。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigins)
	fallback := ""
	if len(origins) > 0 {
		fallback = origins[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := fallback
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" {
				for _, o := range origins {
					if o == reqOrigin {
						origin = o
						break
					}
				}
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", "Retry-After")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
