package registry

import (
	"crypto/rand"
	"math/big"
)

// Без гласных и похожих символов (0/O, 1/I/L), чтобы код было удобно
// диктовать.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

const codeLen = 6

func newCode() string {
	buf := make([]byte, codeLen)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand не отдаёт ошибок на поддерживаемых платформах
			panic(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}
