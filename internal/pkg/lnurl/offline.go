package lnurl

import (
	"context"
	"strconv"
	"strings"
)

// OfflineResolver validates addresses and amounts like Resolver but never
// contacts the address's domain. It pairs with the mock provider so a run
// without provider credentials makes no outbound calls.
type OfflineResolver struct{}

func (OfflineResolver) Resolve(ctx context.Context, address string, amountMsat int64, comment string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amountMsat <= 0 {
		return "", invalid(ReasonAmountOutOfBounds, strconv.FormatInt(amountMsat, 10))
	}
	user, domain, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	return "lnmock" + strconv.FormatInt(amountMsat, 10) + "1" + user + "." + strings.ReplaceAll(domain, ".", "-"), nil
}
