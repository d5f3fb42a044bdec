// Package model はドメインモデルを定義する。
package model

import "fmt"

// CommentStatus はコメントのモデレーション状態を表す。
// ストレージ上の整数表現（-1/0/1）はDBValue/CommentStatusFromDBでのみ扱う。
type CommentStatus string

const (
	// CommentStatusSpam はスパム判定済み、または管理者が却下したコメント。
	CommentStatusSpam CommentStatus = "spam"
	// CommentStatusPending は承認待ちのコメント。
	CommentStatusPending CommentStatus = "pending"
	// CommentStatusApproved は公開済みのコメント。
	CommentStatusApproved CommentStatus = "approved"
)

// DBValue はapproved列に格納する整数値を返す。
func (s CommentStatus) DBValue() int {
	switch s {
	case CommentStatusSpam:
		return -1
	case CommentStatusApproved:
		return 1
	default:
		return 0
	}
}

// CommentStatusFromDB はapproved列の整数値をCommentStatusに変換する。
func CommentStatusFromDB(v int) (CommentStatus, error) {
	switch v {
	case -1:
		return CommentStatusSpam, nil
	case 0:
		return CommentStatusPending, nil
	case 1:
		return CommentStatusApproved, nil
	default:
		return "", fmt.Errorf("unknown comment status value: %d", v)
	}
}

// ParseCommentStatus は "pending" / "approved" / "spam" をCommentStatusに変換する。
func ParseCommentStatus(s string) (CommentStatus, bool) {
	switch CommentStatus(s) {
	case CommentStatusSpam, CommentStatusPending, CommentStatusApproved:
		return CommentStatus(s), true
	default:
		return "", false
	}
}

// Comment は記事に投稿されたコメントを表す。
// CreatedAt、IPAddress、UserAgentは作成時に確定し、以後変更されない。
type Comment struct {
	ID         int64
	PostSlug   string
	AuthorName string
	Content    string
	CreatedAt  int64 // epochミリ秒
	IPAddress  string
	UserAgent  string
	Status     CommentStatus
}

// CommentStats はモデレーション統計を表す。
type CommentStats struct {
	Approved int64
	Pending  int64
	Spam     int64
}

// Total は3状態の合計件数を返す。
func (s CommentStats) Total() int64 {
	return s.Approved + s.Pending + s.Spam
}
