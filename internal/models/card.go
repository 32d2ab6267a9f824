package models

import (
	"regexp"
	"strings"
	"time"
)

// CardType is the closed set of credit card networks.
type CardType string

const (
	CardVisa       CardType = "visa"
	CardMastercard CardType = "mastercard"
	CardAmex       CardType = "amex"
	CardOther      CardType = "other"
)

// ParseCardType matches s case-insensitively against the card types.
func ParseCardType(s string) (CardType, bool) {
	switch t := CardType(strings.ToLower(strings.TrimSpace(s))); t {
	case CardVisa, CardMastercard, CardAmex, CardOther:
		return t, true
	}
	return "", false
}

// Icon returns the display icon of the card type.
func (t CardType) Icon() string {
	if t == CardAmex {
		return "💎"
	}
	return "💳"
}

// CardColor is a tag from the fixed card palette.
type CardColor string

// CardPalette is assigned round-robin to new cards in insertion order.
var CardPalette = []CardColor{
	"blue", "purple", "green", "red", "indigo",
	"pink", "yellow", "teal", "orange", "cyan",
}

// CardColorAt returns the palette color for the n-th card of a user.
func CardColorAt(n int) CardColor {
	if n < 0 {
		n = -n
	}
	return CardPalette[n%len(CardPalette)]
}

var lastFourPattern = regexp.MustCompile(`^\d{4}$`)

// ValidLastFour reports whether s is exactly four digits.
func ValidLastFour(s string) bool {
	return lastFourPattern.MatchString(s)
}

// CreditCard represents a payment card an expense can be attached to.
type CreditCard struct {
	ID             string    `json:"id"`
	OwnerEmail     string    `json:"ownerEmail"`
	Name           string    `json:"name"`
	LastFourDigits string    `json:"lastFourDigits"`
	Type           CardType  `json:"type"`
	Color          CardColor `json:"color"`
	CreatedAt      time.Time `json:"createdAt"`
}
