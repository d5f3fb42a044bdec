package model

// MaxClapsPerVisitor は1訪問者が1記事に送れるクラップの上限。
const MaxClapsPerVisitor = 50

// Clap は訪問者（IPアドレス）ごと・記事ごとのクラップ記録を表す。
// (PostSlug, IPAddress) で一意。
type Clap struct {
	PostSlug  string
	IPAddress string
	ClapCount int
	CreatedAt int64 // epochミリ秒
	UpdatedAt int64 // epochミリ秒。加算のたびに更新される
}
