package spock

import (
	"fmt"
	"strings"
)

// Única frontera de sanitización de identificadores. Toda interpolación
// de nombres de objetos en SQL (DDL, EXISTS sobre tablas) pasa por acá;
// el resto de las queries usa parámetros posicionales.

// ValidateIdent rechaza identificadores vacíos o con caracteres que no
// sobreviven el quoting (NUL) — esos nombres nunca son legítimos.
func ValidateIdent(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("identifier %q contains NUL", name)
	}
	return nil
}

// QuoteIdent quotea un identificador (posiblemente schema-qualified)
// duplicando comillas internas: `public.t1` → `"public"."t1"`.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
