package pagination

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// Parse reads ?page= and ?pageSize= with sane bounds.
func Parse(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return
}

// Slice cuts one page out of an already filtered list. Items is never nil.
func Slice[T any](all []T, page, size int) models.Page[T] {
	total := len(all)
	// compare before multiplying so huge page numbers cannot overflow
	from := total
	if page-1 <= total/size {
		from = min((page-1)*size, total)
	}
	to := from + size
	if to > total {
		to = total
	}

	items := make([]T, 0, to-from)
	items = append(items, all[from:to]...)

	return models.Page[T]{
		Page:     page,
		PageSize: size,
		Total:    int64(total),
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	}
}
