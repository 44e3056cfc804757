package entity

import (
	"slices"

	"github.com/uptrace/bun"
)

// CardType is the kind of dormitory card a user holds.
type CardType string

const (
	CardDO CardType = "DO"
	CardAB CardType = "AB"
	CardKB CardType = "KB"
)

// User is an authenticated customer.
type User struct {
	bun.BaseModel `bun:"table:users"`

	UID         string   `bun:"uid,pk" json:"uid"`
	Name        string   `bun:"name" json:"name"`
	Email       string   `bun:"email" json:"email"`
	Room        string   `bun:"room" json:"room"`
	CardType    CardType `bun:"card_type" json:"cardType"`
	Sysadmin    bool     `bun:"sysadmin" json:"sysadmin"`
	Permissions []int64  `bun:"permissions,type:text" json:"permissions"`
}

// CanManage reports whether the user administers the circle.
func (u *User) CanManage(circleID int64) bool {
	if u == nil {
		return false
	}
	return u.Sysadmin || slices.Contains(u.Permissions, circleID)
}
