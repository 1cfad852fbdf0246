package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Pool is a league of participants predicting the same races.
type Pool struct {
	bun.BaseModel `bun:"table:pools,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Member is a participant in a pool. Guests have no AccountID.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID          string    `bun:"id,pk" json:"id"`
	PoolID      int64     `bun:"pool_id,notnull,unique:members_pool_account" json:"poolID"`
	AccountID   *int64    `bun:"account_id,unique:members_pool_account" json:"accountID,omitempty"`
	DisplayName string    `bun:"display_name,notnull" json:"displayName"`
	Guest       bool      `bun:"guest,notnull,default:false" json:"guest"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
