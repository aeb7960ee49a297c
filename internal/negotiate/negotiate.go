// Package negotiate contains the canned negotiation script and the
// deterministic mock offer generator used when no live seller responds.
package negotiate

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quibble-ai/quibble/internal/acquire"
	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/registry"
	"github.com/quibble-ai/quibble/internal/session"
)

// discountLadder is the scripted counter-offer sequence: each negotiation
// round concedes to the next fraction of the opening price.
var discountLadder = []float64{0.95, 0.92, 0.90}

// Advance drives the session state machine one step from a buyer message and
// returns the seller-side reply. The state is mutated in place; the caller
// re-encodes it into a fresh token.
func Advance(state *session.State, message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))

	if containsAny(msg, "cancel", "stop", "never mind", "nevermind") {
		state.Stage = session.StageAbandoned
		return "No problem, I've closed this search. Come back any time."
	}

	switch state.Stage {
	case session.StagePresenting:
		return advancePresenting(state, msg)
	case session.StageNegotiating:
		return advanceNegotiating(state, msg)
	case session.StageConfirming:
		return advanceConfirming(state, msg)
	case session.StageConfirmed:
		return "This purchase is already confirmed. Start a new thread for anything else."
	case session.StageAbandoned:
		return "This thread is closed. Start a new thread to search again."
	default:
		return "I'm still collecting offers, one moment."
	}
}

func advancePresenting(state *session.State, msg string) string {
	if len(state.Offers) == 0 {
		state.Stage = session.StageAbandoned
		return "I couldn't find any matching offers right now."
	}
	idx, picked := pickOffer(msg, len(state.Offers))
	if !picked {
		return fmt.Sprintf("I have %d offers for you. Tell me which one to pursue, e.g. \"offer 1\".", len(state.Offers))
	}
	offer := state.Offers[idx]
	state.ChosenOffer = offer.SellerID
	state.Stage = session.StageNegotiating
	state.Round = 0
	return fmt.Sprintf("Good choice. %s lists %q at %s. Want me to push for a better price, or take it as is?",
		offer.SellerName, offer.Headline, offer.PriceText)
}

func advanceNegotiating(state *session.State, msg string) string {
	offer, ok := chosenOffer(state)
	if !ok {
		state.Stage = session.StagePresenting
		return "Let's pick an offer first. Which one should I pursue?"
	}
	if containsAny(msg, "deal", "accept", "take it", "as is", "yes") {
		state.Stage = session.StageConfirming
		return fmt.Sprintf("To confirm: %q from %s at %s. Shall I lock it in?",
			offer.Headline, offer.SellerName, CounterPrice(offer.PriceText, state.Round))
	}
	if containsAny(msg, "lower", "cheaper", "discount", "less", "better price", "push") {
		if state.Round >= len(discountLadder) {
			return fmt.Sprintf("%s won't move below %s. Take it, or pick another offer.",
				offer.SellerName, CounterPrice(offer.PriceText, len(discountLadder)))
		}
		state.Round++
		return fmt.Sprintf("%s came back at %s. Push further, or take the deal?",
			offer.SellerName, CounterPrice(offer.PriceText, state.Round))
	}
	return "Say \"push\" to haggle further or \"deal\" to accept."
}

func advanceConfirming(state *session.State, msg string) string {
	offer, ok := chosenOffer(state)
	if !ok {
		state.Stage = session.StagePresenting
		return "Let's pick an offer first. Which one should I pursue?"
	}
	if containsAny(msg, "yes", "confirm", "lock", "do it") {
		state.Stage = session.StageConfirmed
		return fmt.Sprintf("Done. %s will hold %q at %s for you. Check your email for the order link.",
			offer.SellerName, offer.Headline, CounterPrice(offer.PriceText, state.Round))
	}
	if containsAny(msg, "no", "back", "wait") {
		state.Stage = session.StageNegotiating
		return "Alright, we can keep talking. Push further, or pick another offer?"
	}
	return "Just say \"confirm\" and it's yours, or \"no\" to keep negotiating."
}

func chosenOffer(state *session.State) (acquire.Offer, bool) {
	for _, o := range state.Offers {
		if o.SellerID == state.ChosenOffer {
			return o, true
		}
	}
	return acquire.Offer{}, false
}

// pickOffer finds an explicit 1-based offer reference in the message.
func pickOffer(msg string, n int) (int, bool) {
	words := []string{"one", "two", "three", "four", "five"}
	for i := 0; i < n && i < len(words); i++ {
		if strings.Contains(msg, strconv.Itoa(i+1)) || strings.Contains(msg, words[i]) {
			return i, true
		}
	}
	if containsAny(msg, "first") {
		return 0, true
	}
	if n > 1 && containsAny(msg, "second") {
		return 1, true
	}
	if n > 2 && containsAny(msg, "third") {
		return 2, true
	}
	return 0, false
}

func containsAny(msg string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// CounterPrice renders the scripted price after round concessions. The
// display string is recomputed from the offer's price text; if no amount can
// be parsed the original text is returned unchanged.
func CounterPrice(priceText string, round int) string {
	if round <= 0 {
		return priceText
	}
	prefix, amount, ok := splitPrice(priceText)
	if !ok {
		return priceText
	}
	ladder := round
	if ladder > len(discountLadder) {
		ladder = len(discountLadder)
	}
	discounted := math.Round(amount*discountLadder[ladder-1]*100) / 100
	if discounted == math.Trunc(discounted) {
		return prefix + strconv.FormatInt(int64(discounted), 10)
	}
	return prefix + fmt.Sprintf("%.2f", discounted)
}

// splitPrice separates a display price into its currency prefix and amount.
func splitPrice(priceText string) (string, float64, bool) {
	s := strings.TrimSpace(priceText)
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return "", 0, false
	}
	end := start
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',') {
		end++
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(s[start:end], ",", ""), 64)
	if err != nil {
		return "", 0, false
	}
	return s[:start], amount, true
}

// mock seller names per category; indexes are picked by query hash.
var mockSellers = map[registry.Category][]string{
	registry.CategoryCycling:     {"Velo Depot", "Chain & Sprocket", "Spoke City"},
	registry.CategoryElectronics: {"Gadget Barn", "Circuit House", "Voltline"},
	registry.CategoryFashion:     {"Thread & Hem", "Loom Street", "Collar Co"},
	registry.CategoryHome:        {"Hearthware", "Nook Supply", "Casa Basics"},
	registry.CategoryOutdoors:    {"Trailhead", "North Ridge", "Camp Provision"},
	registry.CategoryGeneral:     {"Everyday Goods", "The General Store", "Market Lane"},
}

// MockOffers builds a deterministic offer set for an intent when no live
// seller produced anything. The same spec always yields the same offers.
func MockOffers(spec intent.Spec, n int) []acquire.Offer {
	if n <= 0 {
		return nil
	}
	names := mockSellers[spec.Category]
	if len(names) == 0 {
		names = mockSellers[registry.CategoryGeneral]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(string(spec.Category) + "|" + spec.Query))
	seed := h.Sum32()

	item := spec.Item
	if item == "" {
		item = spec.Query
	}
	out := make([]acquire.Offer, 0, n)
	for i := 0; i < n && i < len(names); i++ {
		base := 20 + (seed>>uint(i*4))%80 // 20..99, stable per spec
		out = append(out, acquire.Offer{
			SellerID:     "mock-" + strconv.Itoa(i+1),
			SellerName:   names[i],
			Headline:     fmt.Sprintf("%s (%s stock)", item, names[i]),
			PriceText:    "$" + strconv.FormatUint(uint64(base+uint32(i)*7), 10),
			ProductURL:   "https://example.com/mock/" + strconv.Itoa(i+1),
			ArrivalDelay: time.Duration(400+i*350) * time.Millisecond,
			Reliability:  acquire.ReliabilityTrusted,
		})
	}
	return out
}
