package model

import "time"

// WaitlistEntry represents an affiliate waitlist signup
type WaitlistEntry struct {
	ID        string    `db:"id" json:"id" bson:"id"`
	FullName  string    `db:"full_name" json:"fullName" bson:"fullName"`
	Email     string    `db:"email" json:"email" bson:"email"`
	Phone     string    `db:"phone" json:"phone" bson:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt" bson:"createdAt"`
}
