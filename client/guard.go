package client

// Decision is the route guard's verdict for a protected page.
type Decision string

const (
	ShowLoading     Decision = "loading"
	RedirectLogin   Decision = "redirect_login"
	RedirectVerify  Decision = "redirect_verify"
	RedirectPricing Decision = "redirect_pricing"
	RenderContent   Decision = "render_content"
)

// GuardInput is everything the guard is allowed to look at.
type GuardInput struct {
	AuthLoading         bool
	SubscriptionLoading bool
	Authenticated       bool
	EmailVerified       bool
	Subscribed          bool
}

// Decide is a pure function producing the guard's verdict. The precedence is
// fixed: loading beats every redirect so a page never flashes a wrong
// destination before state resolves, identity precedes verification, and
// verification precedes billing.
func Decide(in GuardInput) Decision {
	switch {
	case in.AuthLoading || in.SubscriptionLoading:
		return ShowLoading
	case !in.Authenticated:
		return RedirectLogin
	case !in.EmailVerified:
		return RedirectVerify
	case !in.Subscribed:
		return RedirectPricing
	default:
		return RenderContent
	}
}

// Guard evaluates the current state of both holders.
func Guard(auth *AuthState, sub *SubscriptionState) Decision {
	return Decide(GuardInput{
		AuthLoading:         auth.Loading(),
		SubscriptionLoading: sub.Loading(),
		Authenticated:       auth.Account() != nil,
		EmailVerified:       auth.IsEmailVerified(),
		Subscribed:          sub.Subscribed(),
	})
}
