package enums

// PaymentEligibility describes whether a cart line can proceed to checkout.
type PaymentEligibility string

const (
	PaymentEligible           PaymentEligibility = "eligible"
	PaymentTargetedForPayment PaymentEligibility = "targeted_for_payment"
	PaymentEligibilityExpired PaymentEligibility = "expired"
)

// String implements fmt.Stringer.
func (p PaymentEligibility) String() string {
	return string(p)
}

// CanTarget reports whether a line in this state may become the payment target.
func (p PaymentEligibility) CanTarget() bool {
	return p == PaymentEligible || p == PaymentTargetedForPayment
}
