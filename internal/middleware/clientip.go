package middleware

import (
	"net/http"
	"strings"
)

// UnknownIP は送信元IPを特定できない場合の値。
const UnknownIP = "unknown"

// ClientIP はリクエストの送信元IPアドレスを返す。
// CDN経由の配信を前提とし、CF-Connecting-IP、X-Forwarded-Forの先頭の順に参照する。
// どちらもない場合はUnknownIPを返す。RemoteAddrはプロキシのアドレスになるため使用しない。
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return UnknownIP
}
