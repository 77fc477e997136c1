package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashJoinCode 对私人对局加入码做散列，数据库里不存明文
func HashJoinCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckJoinCode 校验加入码
func CheckJoinCode(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
