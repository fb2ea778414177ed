package moderation

// HideThreshold is the number of distinct reporters that hides an item.
const HideThreshold = 2

// ShouldHide reports whether an item with n distinct reporters is hidden.
func ShouldHide(n int) bool {
	return n >= HideThreshold
}
