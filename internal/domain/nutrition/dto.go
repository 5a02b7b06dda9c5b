// internal/domain/nutrition/dto.go
package nutrition

// CreateLogRequest records one food entry.
type CreateLogRequest struct {
	FoodName   string   `json:"food_name" binding:"required"`
	Calories   float64  `json:"calories" binding:"min=0"`
	Tags       []string `json:"tags"`
	ConsumedOn string   `json:"consumed_on" binding:"required"` // YYYY-MM-DD
}

// DailySummary is the integrated overview for one day. TotalCalories keeps
// the exact sum the backend computes; DisplayCalories is the rounded value
// the overview card shows.
type DailySummary struct {
	Date            string  `json:"date"`
	TotalCalories   float64 `json:"total_calories"`
	DisplayCalories int     `json:"display_calories"`
	Entries         int     `json:"entries"`
}
