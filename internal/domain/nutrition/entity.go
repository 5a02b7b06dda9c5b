// internal/domain/nutrition/entity.go
package nutrition

import (
	"time"

	"github.com/lib/pq"
)

// Log is a single nutrition entry for a day. Calories are stored as logged;
// rounding happens only at the display boundary.
type Log struct {
	ID         int64          `json:"id" db:"id"`
	IdentityID int64          `json:"identity_id" db:"identity_id"`
	FoodName   string         `json:"food_name" db:"food_name"`
	Calories   float64        `json:"calories" db:"calories"`
	Tags       pq.StringArray `json:"tags" db:"tags"`
	ConsumedOn time.Time      `json:"consumed_on" db:"consumed_on"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
