package util

import "regexp"

// cubre valores simples y quoteados con escapes: password=x, password='a b\'c'
var dsnPassword = regexp.MustCompile(`password=(?:'(?:\\.|[^'\\])*'|\S+)`)

// MaskDSN enmascara el password de un connection descriptor
// keyword/value antes de loguearlo. No intenta parsear el DSN completo:
// solo neutraliza el valor de password.
func MaskDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, "password=***")
}
