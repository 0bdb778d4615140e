package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// SuggestionRegistry is the slice of the detection service the grouping
// manager needs: suggestion lookup and the terminal status transitions.
type SuggestionRegistry interface {
	Suggestion(id string) (*domain.Suggestion, error)
	MarkAccepted(id, groupID string) error
	MarkRejected(id string) error
	AcceptedGroupID(id string) (string, bool)
}

// UnlinkResult tells the caller what an unlink actually did: whether the
// member was removed this time and whether the group was dissolved because
// it fell below two members.
type UnlinkResult struct {
	Group     *domain.VariantGroup `json:"group,omitempty"`
	Removed   bool                 `json:"removed"`
	Dissolved bool                 `json:"dissolved"`
}

// GroupingService owns the confirmed variant groups. The group store is
// authoritative: every mutation goes through it and the in-memory membership
// index is reconciled from store responses, never from assumed success.
//
// Mutations on the same group are serialized through keyed mutexes;
// different groups mutate concurrently. The membership index has its own
// lock and is what keeps a product from ever landing in two groups.
type GroupingService struct {
	store    domain.GroupStore
	catalog  domain.CatalogRepository
	feedback domain.FeedbackSink
	registry SuggestionRegistry
	log      *zap.SugaredLogger

	mu         sync.Mutex
	membership map[string]string   // productID -> groupID
	members    map[string][]string // groupID -> member product IDs
	groupLocks map[string]*sync.Mutex
}

// NewGroupingService wires the grouping manager to its collaborators.
func NewGroupingService(
	store domain.GroupStore,
	catalog domain.CatalogRepository,
	feedback domain.FeedbackSink,
	registry SuggestionRegistry,
	log *zap.SugaredLogger,
) *GroupingService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &GroupingService{
		store:      store,
		catalog:    catalog,
		feedback:   feedback,
		registry:   registry,
		log:        log,
		membership: make(map[string]string),
		members:    make(map[string][]string),
		groupLocks: make(map[string]*sync.Mutex),
	}
}

// ReloadGroups rebuilds the membership index from the store. Called at
// startup and after anything that may have changed groups out of band.
func (s *GroupingService) ReloadGroups(ctx context.Context) error {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membership = make(map[string]string)
	s.members = make(map[string][]string)
	for _, g := range groups {
		s.members[g.ID] = append([]string(nil), g.MemberProductIDs...)
		for _, id := range g.MemberProductIDs {
			s.membership[id] = g.ID
		}
	}
	return nil
}

// AcceptSuggestion turns a pending suggestion into a persisted variant
// group. Any member already held by a different group fails the whole
// operation with a ConflictError; nothing is overwritten silently.
// Accepting an already-accepted suggestion returns its existing group.
func (s *GroupingService) AcceptSuggestion(ctx context.Context, suggestionID string) (*domain.VariantGroup, error) {
	sg, err := s.registry.Suggestion(suggestionID)
	if err != nil {
		return nil, err
	}

	switch sg.Status {
	case domain.SuggestionAccepted:
		if gid, ok := s.registry.AcceptedGroupID(suggestionID); ok {
			return s.Group(ctx, gid)
		}
		return nil, domain.ErrGroupNotFound
	case domain.SuggestionRejected:
		return nil, domain.NewValidationError("suggestion", "already rejected")
	}

	members := dedupeIDs(sg.MemberProductIDs)
	if len(members) < 2 {
		return nil, domain.NewValidationError("memberProductIds", "at least two distinct products are required")
	}

	group := domain.VariantGroup{
		ID:               uuid.NewString(),
		Name:             s.groupName(ctx, members[0], sg.BaseKey),
		MainProductID:    members[0],
		MemberProductIDs: members,
	}

	lock := s.lockFor(group.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.reserveMembers(group.ID, members, eventAccepted); err != nil {
		return nil, err
	}

	stored, err := s.store.SaveGroup(ctx, group)
	if err != nil {
		s.releaseMembers(group.ID, members)
		return nil, fmt.Errorf("persist group: %w", err)
	}
	s.reconcileGroup(stored)

	if err := s.registry.MarkAccepted(suggestionID, stored.ID); err != nil {
		s.log.Warnw("could not mark suggestion accepted", "suggestionId", suggestionID, "error", err)
	}

	s.emitFeedback(ctx, domain.FeedbackEvent{
		SuggestionID: suggestionID,
		BaseKey:      sg.BaseKey,
		Action:       domain.FeedbackAccepted,
		Confidence:   sg.Confidence,
	})

	s.log.Infow("suggestion accepted",
		"suggestionId", suggestionID,
		"groupId", stored.ID,
		"members", len(stored.MemberProductIDs),
	)
	return stored, nil
}

// RejectSuggestion records the rejection as feedback; catalog state never
// changes. Rejecting an already-rejected suggestion is a no-op.
func (s *GroupingService) RejectSuggestion(ctx context.Context, suggestionID string) error {
	sg, err := s.registry.Suggestion(suggestionID)
	if err != nil {
		return err
	}
	switch sg.Status {
	case domain.SuggestionRejected:
		return nil
	case domain.SuggestionAccepted:
		return domain.NewValidationError("suggestion", "already accepted")
	}

	if err := s.registry.MarkRejected(suggestionID); err != nil {
		return err
	}

	s.emitFeedback(ctx, domain.FeedbackEvent{
		SuggestionID: suggestionID,
		BaseKey:      sg.BaseKey,
		Action:       domain.FeedbackRejected,
		Confidence:   sg.Confidence,
	})

	s.log.Infow("suggestion rejected", "suggestionId", suggestionID, "baseKey", sg.BaseKey)
	return nil
}

// CreateManualGroup groups operator-selected products directly. The name
// defaults to the first selected product's title; the main product defaults
// to the lexically lowest member ID.
func (s *GroupingService) CreateManualGroup(ctx context.Context, productIDs []string, name, mainProductID string) (*domain.VariantGroup, error) {
	members := dedupeIDs(productIDs)
	if len(members) < 2 {
		return nil, domain.NewValidationError("productIds", "at least two distinct products are required")
	}
	if mainProductID == "" {
		mainProductID = members[0]
	} else if !containsID(members, mainProductID) {
		return nil, domain.NewValidationError("mainProductId", "must be one of the group members")
	}
	if name == "" {
		p, err := s.catalog.GetProduct(ctx, productIDs[0])
		if err != nil {
			return nil, fmt.Errorf("resolve group name: %w", err)
		}
		name = p.Title
	}

	group := domain.VariantGroup{
		ID:               uuid.NewString(),
		Name:             name,
		MainProductID:    mainProductID,
		MemberProductIDs: members,
	}

	lock := s.lockFor(group.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.reserveMembers(group.ID, members, eventManualGrouped); err != nil {
		return nil, err
	}

	stored, err := s.store.SaveGroup(ctx, group)
	if err != nil {
		s.releaseMembers(group.ID, members)
		return nil, fmt.Errorf("persist group: %w", err)
	}
	s.reconcileGroup(stored)

	s.emitFeedback(ctx, domain.FeedbackEvent{
		Action:     domain.FeedbackManualGroupCreated,
		Confidence: 1.0,
		Metadata:   map[string]string{"groupId": stored.ID},
	})

	s.log.Infow("manual group created", "groupId", stored.ID, "members", len(stored.MemberProductIDs))
	return stored, nil
}

// UnlinkMember removes one product from a group. Dropping below two members
// dissolves the group; the result tells the caller so it can inform the
// user. Unlinking a member that is already gone, or unlinking from a group
// already dissolved, is a no-op.
func (s *GroupingService) UnlinkMember(ctx context.Context, groupID, productID, newMainID string) (*UnlinkResult, error) {
	lock := s.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, domain.ErrGroupNotFound) {
		s.forgetGroup(groupID)
		return &UnlinkResult{Dissolved: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}

	if !group.HasMember(productID) {
		return &UnlinkResult{Group: group}, nil
	}

	remaining := make([]string, 0, len(group.MemberProductIDs)-1)
	for _, id := range group.MemberProductIDs {
		if id != productID {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) < 2 {
		if err := s.store.DeleteGroup(ctx, groupID); err != nil && !errors.Is(err, domain.ErrGroupNotFound) {
			return nil, fmt.Errorf("dissolve group: %w", err)
		}
		s.forgetGroup(groupID)
		s.log.Infow("group dissolved after unlink", "groupId", groupID, "productId", productID)
		return &UnlinkResult{Removed: true, Dissolved: true}, nil
	}

	if newMainID != "" && !containsID(remaining, newMainID) {
		return nil, domain.NewValidationError("mainProductId", "must be one of the remaining members")
	}
	group.MemberProductIDs = remaining
	if group.MainProductID == productID {
		group.MainProductID = nextMainProduct(remaining, newMainID)
	}

	stored, err := s.store.SaveGroup(ctx, *group)
	if err != nil {
		return nil, fmt.Errorf("persist group: %w", err)
	}
	s.reconcileGroup(stored)
	s.releaseMember(productID, groupID)

	s.log.Infow("member unlinked", "groupId", groupID, "productId", productID)
	return &UnlinkResult{Group: stored, Removed: true}, nil
}

// DissolveGroup deletes a group entirely; all members return to ungrouped.
// Dissolving a group that no longer exists is a no-op.
func (s *GroupingService) DissolveGroup(ctx context.Context, groupID string) error {
	lock := s.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, domain.ErrGroupNotFound) {
			s.forgetGroup(groupID)
			return nil
		}
		return fmt.Errorf("delete group: %w", err)
	}
	s.forgetGroup(groupID)
	s.log.Infow("group dissolved", "groupId", groupID)
	return nil
}

// SetMainProduct changes the group's main product to another member.
func (s *GroupingService) SetMainProduct(ctx context.Context, groupID, productID string) (*domain.VariantGroup, error) {
	lock := s.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.MainProductID == productID {
		return group, nil
	}
	if !group.HasMember(productID) {
		return nil, domain.NewValidationError("mainProductId", "must be one of the group members")
	}

	group.MainProductID = productID
	stored, err := s.store.SaveGroup(ctx, *group)
	if err != nil {
		return nil, fmt.Errorf("persist group: %w", err)
	}
	s.reconcileGroup(stored)
	return stored, nil
}

// Group fetches one group from the authoritative store.
func (s *GroupingService) Group(ctx context.Context, groupID string) (*domain.VariantGroup, error) {
	return s.store.GetGroup(ctx, groupID)
}

// Groups lists all confirmed groups.
func (s *GroupingService) Groups(ctx context.Context) ([]domain.VariantGroup, error) {
	return s.store.ListGroups(ctx)
}

// ProductViews joins the catalog with group membership, annotating each
// product with hasVariants and its variantGroupId.
func (s *GroupingService) ProductViews(ctx context.Context) ([]domain.ProductView, error) {
	products, err := s.catalog.FetchProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	groupOf := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.MemberProductIDs {
			groupOf[id] = g.ID
		}
	}

	views := make([]domain.ProductView, len(products))
	for i, p := range products {
		gid := groupOf[p.ID]
		views[i] = domain.ProductView{
			Product:        p,
			HasVariants:    gid != "",
			VariantGroupID: gid,
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// FeedbackHistory returns the append-only feedback journal.
func (s *GroupingService) FeedbackHistory(ctx context.Context) ([]domain.FeedbackEvent, error) {
	return s.feedback.History(ctx)
}

// ClearFeedbackHistory wipes the journal; patterns suppressed by repeated
// rejections become suggestible again on the next pass.
func (s *GroupingService) ClearFeedbackHistory(ctx context.Context) error {
	if err := s.feedback.Clear(ctx); err != nil {
		return fmt.Errorf("clear feedback history: %w", err)
	}
	s.log.Infow("feedback history cleared")
	return nil
}

// lockFor returns the mutex serializing mutations of one group.
func (s *GroupingService) lockFor(groupID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.groupLocks[groupID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.groupLocks[groupID] = l
	return l
}

// reserveMembers atomically claims membership of all products for groupID.
// The product lifecycle transition decides legality; a product grouped
// elsewhere surfaces as a ConflictError and nothing is claimed.
func (s *GroupingService) reserveMembers(groupID string, ids []string, ev stateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		state := StateUngrouped
		if ev == eventAccepted {
			// an accept acts on members of a live suggestion
			state = StateSuggested
		}
		holder, held := s.membership[id]
		if held && holder != groupID {
			state = StateGrouped
		}
		if _, err := transition(state, ev); err != nil {
			return domain.NewConflictError(id, holder)
		}
	}
	for _, id := range ids {
		s.membership[id] = groupID
	}
	s.members[groupID] = append([]string(nil), ids...)
	return nil
}

// releaseMembers rolls back a reservation after a failed persist.
func (s *GroupingService) releaseMembers(groupID string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if s.membership[id] == groupID {
			delete(s.membership, id)
		}
	}
	delete(s.members, groupID)
}

// releaseMember drops a single product's membership if it still points at
// the given group.
func (s *GroupingService) releaseMember(productID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.membership[productID] == groupID {
		delete(s.membership, productID)
	}
}

// reconcileGroup makes the index reflect what the store actually persisted.
func (s *GroupingService) reconcileGroup(g *domain.VariantGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[g.ID] {
		if s.membership[id] == g.ID {
			delete(s.membership, id)
		}
	}
	s.members[g.ID] = append([]string(nil), g.MemberProductIDs...)
	for _, id := range g.MemberProductIDs {
		s.membership[id] = g.ID
	}
}

// forgetGroup clears all index entries of a dissolved group.
func (s *GroupingService) forgetGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[groupID] {
		if s.membership[id] == groupID {
			delete(s.membership, id)
		}
	}
	delete(s.members, groupID)
}

// emitFeedback appends an event to the journal, filling in identity and
// time. Failures are logged and swallowed: feedback is fire-and-forget and
// never blocks the operation that produced it.
func (s *GroupingService) emitFeedback(ctx context.Context, ev domain.FeedbackEvent) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()
	if err := s.feedback.Append(ctx, ev); err != nil {
		s.log.Warnw("failed to record feedback event",
			"action", ev.Action,
			"suggestionId", ev.SuggestionID,
			"error", err,
		)
	}
}

// groupName derives the display name for a group created from a suggestion:
// the first member's title when the catalog has one, else the base pattern.
func (s *GroupingService) groupName(ctx context.Context, productID, baseKey string) string {
	if p, err := s.catalog.GetProduct(ctx, productID); err == nil && p.Title != "" {
		return p.Title
	}
	return baseKey
}

// nextMainProduct picks the replacement main when the current main is
// removed: the caller's choice when supplied, otherwise the lexically
// lowest remaining member.
func nextMainProduct(remaining []string, preferred string) string {
	if preferred != "" && containsID(remaining, preferred) {
		return preferred
	}
	lowest := remaining[0]
	for _, id := range remaining[1:] {
		if id < lowest {
			lowest = id
		}
	}
	return lowest
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
