package middleware

import (
	"net/http"
	"strings"
)

// methodOverrideField はHTMLフォームから実際のHTTPメソッドを指定するフィールド名。
const methodOverrideField = "_method"

// NewMethodOverrideMiddleware はPOSTフォームの_methodフィールド（またはX-HTTP-Method-Overrideヘッダー）で
// PUT、PATCH、DELETEへの書き換えを行う。それ以外の値は無視する。
func NewMethodOverrideMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				override := r.Header.Get("X-HTTP-Method-Override")
				if override == "" && isFormRequest(r) {
					override = r.PostFormValue(methodOverrideField)
				}

				switch m := strings.ToUpper(strings.TrimSpace(override)); m {
				case http.MethodPut, http.MethodPatch, http.MethodDelete:
					r.Method = m
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
