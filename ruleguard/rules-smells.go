// Package gorules holds ruleguard checks run through gocritic's ruleguard
// checker: golangci-lint run --enable gocritic with rules=ruleguard/rules-smells.go.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// smells flags patterns that usually want a small refactor.
func smells(m dsl.Matcher) {
	// Consecutive guards with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`use fmt.Errorf`).
		Suggest(`fmt.Errorf($args)`)
}

// logging keeps library code on the injected zap logger.
func logging(m dsl.Matcher) {
	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`, `log.Printf($*_)`, `log.Println($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`print through the injected *zap.Logger instead`)

	m.Match(`zap.L()`, `zap.S()`).
		Report(`global zap logger; accept a *zap.Logger instead`)
}

// storage guards the single-connection SQLite store.
func storage(m dsl.Matcher) {
	// ":memory:" opens one connection; reading through the pool while a
	// transaction holds it blocks forever.
	m.Match(`$tx, $err := $s.db.BeginTx($ctx, $opts); $*_; $s.db.QueryRowContext($*_)`).
		Report(`query on the pool while $tx is open; pass $tx instead`)

	m.Match(`$err == sql.ErrNoRows`).
		Report(`compare with errors.Is($err, sql.ErrNoRows)`).
		Suggest(`errors.Is($err, sql.ErrNoRows)`)
}
