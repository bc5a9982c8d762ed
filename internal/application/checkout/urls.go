package checkout

import (
	"net/url"
	"strings"
)

// Links builds the buyer facing URLs handed to the payment provider.
type Links struct {
	PublicURL    string
	ThankYouPath string
}

func (l Links) base() string {
	return strings.TrimRight(l.PublicURL, "/")
}

// ThankYou returns the page a buyer lands on after paying or submitting the order form.
func (l Links) ThankYou(orderNumber, token string) string {
	q := url.Values{}
	q.Set("orderNumber", orderNumber)
	if token != "" {
		q.Set("token", token)
	}
	path := l.ThankYouPath
	if path == "" {
		path = "/thank-you"
	}
	return l.base() + path + "?" + q.Encode()
}

// CheckoutPage returns the product's checkout page, with an error code when one is given.
func (l Links) CheckoutPage(slug, errCode string) string {
	u := l.base() + "/marketplace/" + url.PathEscape(slug) + "/checkout"
	if errCode != "" {
		u += "?" + url.Values{"error": {errCode}}.Encode()
	}
	return u
}

func (l Links) Canceled(slug string) string {
	return l.base() + "/marketplace/" + url.PathEscape(slug) + "/checkout?canceled=1"
}
