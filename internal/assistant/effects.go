package assistant

import (
	"context"
	"regexp"
	"strings"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/catalog"
	"github.com/glowhaus/storefront-backend/internal/orders"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

const maxRecommendations = 3

// Leading zeros are free; more than nine significant digits is not a reference.
var orderRefPattern = regexp.MustCompile(`(?i)(?:\bORD[\s#:-]*0*\d{1,9}|#\s*0*\d{1,9})\b`)

func showMenu(_ context.Context, e *Engine, _ Turn, reply *Reply) error {
	reply.say("%s", e.script.Messages.Greeting)
	reply.Options = menuOptions()
	return nil
}

func startQuiz(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	if profile := e.recall(ctx, turn.SessionID); profile != nil {
		reply.say(e.script.Messages.ProfileRecall, profile.SkinType, profile.Concern)
	}
	reply.Step = StepSkinType
	reply.say("%s", e.script.Messages.SkinTypePrompt)
	reply.Options = options(e.script.SkinTypes)
	return nil
}

func answerQuiz(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	step := turn.Step
	if step == "" {
		step = StepSkinType
	}
	switch step {
	case StepSkinType:
		picked, ok := match(e.script.SkinTypes, turn.Value)
		if !ok {
			reply.Step = StepSkinType
			reply.say("%s", e.script.Messages.SkinTypeRetry)
			reply.Options = options(e.script.SkinTypes)
			return nil
		}
		reply.Step = StepConcern
		reply.SkinType = picked.Value
		reply.say("%s", e.script.Messages.ConcernPrompt)
		reply.Options = options(e.script.Concerns)
		return nil
	default:
		skin, ok := match(e.script.SkinTypes, turn.SkinType)
		if !ok {
			// Lost the first answer; ask again from the top.
			return startQuiz(ctx, e, turn, reply)
		}
		concern, ok := match(e.script.Concerns, turn.Value)
		if !ok {
			reply.Step = StepConcern
			reply.SkinType = skin.Value
			reply.say("%s", e.script.Messages.ConcernRetry)
			reply.Options = options(e.script.Concerns)
			return nil
		}
		return e.recommend(ctx, turn, skin, concern, reply)
	}
}

// answerQuizText lets typed answers drive the quiz, unless the text is
// clearly a request to do something else.
func answerQuizText(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	if action, ok := e.script.Classify(turn.Text); ok && action != ActionQuiz {
		return e.redirect(ctx, turn, action, reply)
	}
	turn.Value = turn.Text
	return answerQuiz(ctx, e, turn, reply)
}

func promptOrderRef(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	if ref := extractOrderRef(turn.Value); ref != "" {
		return e.track(ctx, ref, reply)
	}
	if ref := extractOrderRef(turn.Text); ref != "" {
		return e.track(ctx, ref, reply)
	}
	reply.say("%s", e.script.Messages.TrackPrompt)
	return nil
}

func trackOrder(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	return e.track(ctx, turn.Value, reply)
}

func trackOrderText(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	if ref := extractOrderRef(turn.Text); ref != "" {
		return e.track(ctx, ref, reply)
	}
	if action, ok := e.script.Classify(turn.Text); ok && action != ActionTrack {
		return e.redirect(ctx, turn, action, reply)
	}
	return e.track(ctx, turn.Text, reply)
}

func showReturnPolicy(_ context.Context, e *Engine, _ Turn, reply *Reply) error {
	reply.say("%s", e.script.Messages.ReturnPolicy)
	reply.Options = []Option{
		{Label: "Track my order", Action: ActionTrack},
		{Label: "Back to menu", Action: ActionMenu},
	}
	return nil
}

// interpret classifies free text from a resting state.
func interpret(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	if ref := extractOrderRef(turn.Text); ref != "" {
		reply.State = StateTracking
		return e.track(ctx, ref, reply)
	}
	action, ok := e.script.Classify(turn.Text)
	if !ok {
		reply.State = StateIdle
		reply.say("%s", e.script.Messages.Fallback)
		reply.Options = menuOptions()
		return nil
	}
	return e.redirect(ctx, turn, action, reply)
}

func addToBag(ctx context.Context, e *Engine, turn Turn, reply *Reply) error {
	productID := strings.TrimSpace(turn.Value)
	if productID == "" {
		reply.say("%s", e.script.Messages.AddFailed)
		return nil
	}
	owner := cart.OwnerFor(turn.UserID, turn.SessionID)
	snapshot, err := e.bag.Add(ctx, owner, cart.AddInput{ProductID: productID})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
			return err
		}
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"product_id": productID, "error": err.Error()}), "assistant.add_to_bag_failed")
		reply.say("%s", e.script.Messages.AddFailed)
		return nil
	}
	reply.Cart = snapshot
	reply.Step = turn.Step
	reply.SkinType = turn.SkinType
	name := productID
	for _, line := range snapshot.Items {
		if line.ProductID == productID {
			name = line.Name
			break
		}
	}
	reply.say(e.script.Messages.AddedToBag, name)
	return nil
}

// redirect re-dispatches a classified action through the table so the
// resulting state matches what the button would have produced.
func (e *Engine) redirect(ctx context.Context, turn Turn, action Action, reply *Reply) error {
	tr := e.table[transitionKey{turn.State, action}]
	reply.State = tr.to
	turn.Action = action
	turn.Value = ""
	return tr.effect(ctx, e, turn, reply)
}

// track looks an order up. Not-found keeps the user in the tracking state so
// they can retype; a backend failure is reported without leaving the chat.
func (e *Engine) track(ctx context.Context, ref string, reply *Reply) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		reply.State = StateTracking
		reply.say("%s", e.script.Messages.TrackPrompt)
		return nil
	}
	view, err := e.tracker.Track(ctx, ref)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			reply.State = StateTracking
			reply.say(e.script.Messages.TrackNotFound, ref)
			return nil
		}
		e.logg.Error(ctx, "assistant.track_failed", err)
		reply.State = StateTracking
		reply.say("%s", e.script.Messages.TrackUnavailable)
		return nil
	}
	reply.State = StateIdle
	reply.Order = view
	reply.say(e.script.Messages.TrackFound, view.OrderNumber, string(view.Status))
	reply.Options = menuOptions()
	return nil
}

func (e *Engine) recommend(ctx context.Context, turn Turn, skin, concern choice, reply *Reply) error {
	products, err := e.products.Products(ctx)
	if err != nil {
		return err
	}
	picks := Recommend(products, skin.Value, concern.Value)
	if len(picks) == 0 {
		picks = pickByID(products, e.script.DefaultPicks)
		reply.say("%s", e.script.Messages.RecommendationDefault)
	} else {
		reply.say(e.script.Messages.Recommendation, skin.label(), concern.label())
	}
	reply.Recommendations = picks
	reply.State = StateIdle
	reply.Options = menuOptions()
	e.remember(ctx, turn.SessionID, Profile{SkinType: skin.Value, Concern: concern.Value})
	return nil
}

type rule struct {
	concerns    []string
	ingredients []string
}

// rules are checked in order; the first whose concern keyword appears in the
// answer decides which products qualify.
var rules = []rule{
	{concerns: []string{"acne", "pore", "oil"}, ingredients: []string{"salicylic"}},
	{concerns: []string{"dry", "hydrat"}, ingredients: []string{"hyaluronic", "ceramide"}},
	{concerns: []string{"dull", "dark spot"}, ingredients: []string{"vitamin c", "niacinamide"}},
	{concerns: []string{"aging", "fine line", "wrinkle"}, ingredients: []string{"retin"}},
	{concerns: []string{"sensitiv", "redness"}, ingredients: []string{"centella"}},
}

// Recommend picks up to three products for a quiz outcome. A product
// qualifies by carrying a rule ingredient or listing the concern itself, and
// must suit the skin type.
func Recommend(products []catalog.Product, skinType, concern string) []catalog.Product {
	concern = strings.ToLower(concern)
	var matched *rule
	for i := range rules {
		for _, keyword := range rules[i].concerns {
			if strings.Contains(concern, keyword) {
				matched = &rules[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}
	if matched == nil {
		return nil
	}
	out := make([]catalog.Product, 0, maxRecommendations)
	for _, p := range products {
		if !p.Suits(skinType) || !qualifies(p, *matched, concern) {
			continue
		}
		out = append(out, p)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}

func qualifies(p catalog.Product, r rule, concern string) bool {
	if p.Addresses(concern) {
		return true
	}
	for _, ingredient := range r.ingredients {
		if p.HasIngredient(ingredient) {
			return true
		}
	}
	return false
}

func pickByID(products []catalog.Product, ids []string) []catalog.Product {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		for _, p := range products {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func extractOrderRef(text string) string {
	found := orderRefPattern.FindString(text)
	if found == "" {
		return ""
	}
	if _, ok := orders.NormalizeOrderRef(found); !ok {
		return ""
	}
	return found
}
