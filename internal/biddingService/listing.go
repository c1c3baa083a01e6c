package bidding

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
)

const (
	minTitleLength       = 3
	maxTitleLength       = 200
	maxDescriptionLength = 512
	maxShoutingWords     = 2
	maxCharRun           = 3
)

var (
	titleCharset  = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.,!?'"@#$%&*()+=:;/\\]+$`)
	shoutingWord  = regexp.MustCompile(`\b[A-Z]{3,}\b`)
	urlLikeSubstr = regexp.MustCompile(`(?i)https?://|www\.|\.(com|org|net)`)
)

// validateTitle trims title and checks it against the listing title rules
func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	length := utf8.RuneCountInString(title)

	switch {
	case length < minTitleLength:
		return "", biddingerrors.InvalidListing("title", "Title must be at least 3 characters long.")
	case length > maxTitleLength:
		return "", biddingerrors.InvalidListing("title", "Title cannot exceed 200 characters.")
	case !titleCharset.MatchString(title):
		return "", biddingerrors.InvalidListing("title", "Title can only contain letters, numbers, spaces, and common punctuation marks.")
	case len(shoutingWord.FindAllString(title, -1)) > maxShoutingWords:
		return "", biddingerrors.InvalidListing("title", "Please avoid excessive capitalization in the title.")
	case hasCharRun(title, maxCharRun+1):
		return "", biddingerrors.InvalidListing("title", "Title contains repetitive characters.")
	case urlLikeSubstr.MatchString(title):
		return "", biddingerrors.InvalidListing("title", "Title should not contain URLs or website addresses.")
	}
	return title, nil
}

// hasCharRun reports whether s repeats one character n or more times in a row
func hasCharRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func validateStartingPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return biddingerrors.InvalidListing("starting_price", "Price must be greater than 0.")
	}
	if !models.HasMoneyPrecision(price) {
		return biddingerrors.InvalidListing("starting_price", "Price cannot have more than 2 decimal places.")
	}
	if !models.WithinMaxAmount(price) {
		return biddingerrors.InvalidListing("starting_price", "Price cannot exceed "+models.FormatMoney(models.MaxAmount)+".")
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return biddingerrors.InvalidListing("description", "Description cannot exceed 512 characters.")
	}
	return nil
}

func validateEndDate(endDate *time.Time, now time.Time) error {
	if endDate != nil && !endDate.After(now) {
		return biddingerrors.InvalidListing("end_date", "End date must be in the future.")
	}
	return nil
}
