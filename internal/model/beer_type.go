// Package model defines domain entities for the application.
package model

import "time"

// LowStockThreshold is the keg count at or below which a beer type is shown
// as running low. It has no meaning on the server.
const LowStockThreshold = 20

// BeerType is a kind of beer held in the cold room and its keg count.
// KegCount is never negative.
type BeerType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	KegCount  int       `json:"kegCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsLowStock reports whether the count is at or below LowStockThreshold.
func IsLowStock(count int) bool {
	return count <= LowStockThreshold
}

// LowStock reports whether the beer type is running low.
func (b *BeerType) LowStock() bool {
	return IsLowStock(b.KegCount)
}
