package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"gorm.io/datatypes"
)

// CalculateSHA256 computes the SHA-256 hash of a byte slice.
func CalculateSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint 对多个字段整体计算SHA-256，字段之间用长度前缀分隔，避免拼接产生歧义
func Fingerprint(parts ...string) string {
	hasher := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (8 * i))
		}
		hasher.Write(lenBuf[:])
		hasher.Write([]byte(p))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// ConvertArrayToJSON 辅助函数: 将字符串数组转换为JSON
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}

// ConvertJSONToArray 辅助函数: 将JSON数组还原为字符串数组，格式错误时返回nil
func ConvertJSONToArray(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil
	}
	return arr
}
