// Package identity 处理 userEmail cookie 对应的用户身份。
package identity

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AnonymousEmail 是未登录访客使用的占位邮箱，不会被记账。
const AnonymousEmail = "anonymous@fortecai.com"

// Normalize 去掉首尾空白并转为小写。
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAnonymous 判断邮箱是否代表匿名访客（为空或等于占位邮箱）。
func IsAnonymous(email string) bool {
	e := Normalize(email)
	return e == "" || e == AnonymousEmail
}

// DisplayName 取邮箱 @ 之前的部分作为默认展示名；本地部分为空时返回整个邮箱。
func DisplayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// UserID 由邮箱派生稳定的用户 ID，同一邮箱总是得到同一个 ID。
func UserID(email string) string {
	sum := blake2b.Sum256([]byte(Normalize(email)))
	return hex.EncodeToString(sum[:16])
}
