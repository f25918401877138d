package bulletin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const codeLen = 16

func identity(d Data) string {
	return strings.Join([]string{d.ID, d.Student.ID, d.Student.Name, d.Term, d.AcademicYear, d.School.Name}, "|")
}

// VerificationCode signs the identity of a bulletin so that a printed copy can be checked later.
func VerificationCode(d Data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(identity(d)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))[:codeLen])
}

// Verify reports whether code was issued for d.
func Verify(d Data, code, secret string) bool {
	want := VerificationCode(d, secret)
	got := strings.ToUpper(strings.TrimSpace(code))
	return hmac.Equal([]byte(want), []byte(got))
}

// VerificationURL is the link encoded in the bulletin QR code.
func VerificationURL(baseURL, id, code string) string {
	if baseURL == "" {
		return ""
	}
	q := make(url.Values)
	q.Set("id", id)
	q.Set("code", code)
	return baseURL + "?" + q.Encode()
}
