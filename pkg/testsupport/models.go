package testsupport

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Person is the self-referencing entity most DAO tests run against.
type Person struct {
	bun.BaseModel `bun:"table:people,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	FirstName string    `bun:"first_name" json:"firstName"`
	LastName  string    `bun:"last_name" json:"lastName"`
	Age       int       `bun:"age" json:"age"`
	Email     *string   `bun:"email" json:"email,omitempty"`
	FatherID  *int64    `bun:"father_id" json:"fatherId,omitempty"`
	Father    *Person   `bun:"rel:belongs-to,join:father_id=id" json:"-"`
	Children  []*Person `bun:"rel:has-many,join:id=father_id" json:"-"`
}

// Project has a uuid identifier and a reference to its owner.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:pr"`

	ID      uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name    string    `bun:"name" json:"name"`
	Budget  float64   `bun:"budget" json:"budget"`
	OwnerID *int64    `bun:"owner_id" json:"ownerId,omitempty"`
	Owner   *Person   `bun:"rel:belongs-to,join:owner_id=id" json:"-"`
}

// Models returns one nil pointer per test model, in creation order.
func Models() []any {
	return []any{(*Person)(nil), (*Project)(nil)}
}

// NewPerson returns an unsaved person.
func NewPerson(first, last string, age int) *Person {
	return &Person{FirstName: first, LastName: last, Age: age}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
