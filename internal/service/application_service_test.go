package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

func TestCreateApplicationRejectsDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	o := e.offer(t, p.ID, "Tokyo Univ.")

	first := e.apply(t, p.ID, s1.ID, o.ID)
	assert.Equal(t, domain.StatusPending, first.Status)

	_, err := e.apps.CreateApplication(ctx, p.ID, s1.ID, o.ID)
	require.ErrorIs(t, err, domain.ErrDuplicateApplication)

	all, err := e.apps.ListApplications(ctx, domain.ApplicationFilter{Kind: domain.FilterAll})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateApplicationChecksReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	staff := e.member(t, "22.222.222-2", domain.RoleStaff)

	old := e.program(t, "2024 Cycle")
	oldOffer := e.offer(t, old.ID, "Kyoto Univ.")
	require.NoError(t, e.programs.FinalizeProgram(ctx, old.ID))

	p := e.program(t, "2025 Cycle")
	o := e.offer(t, p.ID, "Tokyo Univ.")

	_, err := e.apps.CreateApplication(ctx, old.ID, s1.ID, oldOffer.ID)
	assert.ErrorIs(t, err, domain.ErrProgramNotActive)

	_, err = e.apps.CreateApplication(ctx, p.ID, s1.ID, oldOffer.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.apps.CreateApplication(ctx, p.ID, "99.999.999-9", o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.apps.CreateApplication(ctx, p.ID, staff.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.apps.CreateApplication(ctx, 404, s1.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInteractionAuthorRoleForcesStatus(t *testing.T) {
	priors := []domain.ApplicationStatus{domain.StatusPending, domain.StatusUnderReview, domain.StatusPreselected}
	authors := []struct {
		role domain.Role
		kind domain.InteractionKind
		want func(prior domain.ApplicationStatus) domain.ApplicationStatus
	}{
		{domain.RoleStudent, domain.InteractionDocument, func(domain.ApplicationStatus) domain.ApplicationStatus { return domain.StatusPending }},
		{domain.RoleStaff, domain.InteractionComment, func(domain.ApplicationStatus) domain.ApplicationStatus { return domain.StatusUnderReview }},
		{domain.RoleAuditor, domain.InteractionComment, func(p domain.ApplicationStatus) domain.ApplicationStatus { return p }},
	}

	for _, prior := range priors {
		for _, author := range authors {
			t.Run(fmt.Sprintf("%s_%s_from_%s", author.role, author.kind, prior), func(t *testing.T) {
				e := newEnv(t)
				ctx := context.Background()
				s1 := e.student(t, "11.111.111-1")
				e.member(t, "22.222.222-2", domain.RoleStaff)
				e.member(t, "33.333.333-3", domain.RoleAuditor)
				p := e.program(t, "2025 Cycle")
				o := e.offer(t, p.ID, "Tokyo Univ.")
				a := e.apply(t, p.ID, s1.ID, o.ID)

				if prior != domain.StatusPending {
					_, err := e.apps.SetApplicationStatus(ctx, a.ID, prior)
					require.NoError(t, err)
				}

				authorID := map[domain.Role]string{
					domain.RoleStudent: s1.ID,
					domain.RoleStaff:   "22.222.222-2",
					domain.RoleAuditor: "33.333.333-3",
				}[author.role]

				got, err := e.apps.AddInteraction(ctx, a.ID, domain.InteractionInput{
					AuthorID: authorID,
					Kind:     author.kind,
					Title:    "Transcript",
				})
				require.NoError(t, err)
				assert.Equal(t, author.want(prior), got.Status)
				require.Len(t, got.Interactions, 1)
				assert.Equal(t, authorID, got.Interactions[0].AuthorID)

				stored, err := e.reopen(t).apps.GetApplication(ctx, a.ID)
				require.NoError(t, err)
				assert.Equal(t, got.Status, stored.Status)
				assert.Len(t, stored.Interactions, 1)
			})
		}
	}
}

func TestAddInteractionValidatesInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	a := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)

	_, err := e.apps.AddInteraction(ctx, a.ID, domain.InteractionInput{AuthorID: s1.ID, Kind: "memo", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.apps.AddInteraction(ctx, a.ID, domain.InteractionInput{AuthorID: s1.ID, Kind: domain.InteractionDocument, Title: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.apps.AddInteraction(ctx, a.ID, domain.InteractionInput{AuthorID: "nobody", Kind: domain.InteractionDocument, Title: "CV"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.apps.AddInteraction(ctx, 404, domain.InteractionInput{AuthorID: s1.ID, Kind: domain.InteractionDocument, Title: "CV"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTerminalApplicationsRejectChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	staff := e.member(t, "22.222.222-2", domain.RoleStaff)
	p := e.program(t, "2025 Cycle")
	accepted := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)
	rejected := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Osaka Univ.").ID)

	require.NoError(t, e.apps.AcceptAndRejectRest(ctx, accepted.ID))
	require.Equal(t, domain.StatusRejected, e.status(t, rejected.ID))

	for _, id := range []int64{accepted.ID, rejected.ID} {
		before := e.status(t, id)

		_, err := e.apps.AddInteraction(ctx, id, domain.InteractionInput{AuthorID: staff.ID, Kind: domain.InteractionComment, Title: "Late note"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = e.apps.AddInteraction(ctx, id, domain.InteractionInput{AuthorID: s1.ID, Kind: domain.InteractionDocument, Title: "Late document"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = e.apps.SetApplicationStatus(ctx, id, domain.StatusPreselected)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		assert.ErrorIs(t, e.apps.AcceptAndRejectRest(ctx, id), domain.ErrInvalidTransition)

		got, err := e.apps.GetApplication(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before, got.Status)
		assert.Empty(t, got.Interactions)
	}
}

func TestAcceptAndRejectRestScopesToStudentAndProgram(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	s2 := e.student(t, "12.222.222-2")

	previous := e.program(t, "2024 Cycle")
	earlier := e.apply(t, previous.ID, s1.ID, e.offer(t, previous.ID, "Kyoto Univ.").ID)
	require.NoError(t, e.apps.AcceptAndRejectRest(ctx, earlier.ID))
	require.NoError(t, e.programs.FinalizeProgram(ctx, previous.ID))

	p := e.program(t, "2025 Cycle")
	tokyo := e.offer(t, p.ID, "Tokyo Univ.")
	osaka := e.offer(t, p.ID, "Osaka Univ.")
	nagoya := e.offer(t, p.ID, "Nagoya Univ.")

	target := e.apply(t, p.ID, s1.ID, tokyo.ID)
	sibling := e.apply(t, p.ID, s1.ID, osaka.ID)
	preselected := e.apply(t, p.ID, s1.ID, nagoya.ID)
	other := e.apply(t, p.ID, s2.ID, tokyo.ID)
	_, err := e.apps.SetApplicationStatus(ctx, preselected.ID, domain.StatusPreselected)
	require.NoError(t, err)

	require.NoError(t, e.apps.AcceptAndRejectRest(ctx, target.ID))

	assert.Equal(t, domain.StatusAccepted, e.status(t, target.ID))
	assert.Equal(t, domain.StatusRejected, e.status(t, sibling.ID))
	assert.Equal(t, domain.StatusRejected, e.status(t, preselected.ID))
	assert.Equal(t, domain.StatusPending, e.status(t, other.ID))
	assert.Equal(t, domain.StatusAccepted, e.status(t, earlier.ID))

	reloaded := e.reopen(t)
	assert.Equal(t, domain.StatusAccepted, reloaded.status(t, target.ID))
	assert.Equal(t, domain.StatusRejected, reloaded.status(t, sibling.ID))
	assert.Equal(t, domain.StatusPending, reloaded.status(t, other.ID))
}

func TestSetApplicationStatusAcceptedRunsCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	target := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)
	sibling := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Osaka Univ.").ID)

	got, err := e.apps.SetApplicationStatus(ctx, target.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, got.Status)
	assert.Equal(t, domain.StatusRejected, e.status(t, sibling.ID))

	_, err = e.apps.SetApplicationStatus(ctx, sibling.ID, "approved")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAcceptanceCascadeContinuesPastFailedSibling(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	target := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)
	first := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Osaka Univ.").ID)
	broken := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Kobe Univ.").ID)
	last := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Nagoya Univ.").ID)

	apps := NewApplicationService(e.graph, e.withFlakyStatusWrites(broken.ID), logger.Nop())
	err := apps.AcceptAndRejectRest(ctx, target.ID)
	require.Error(t, err)

	var cascadeErr *domain.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	assert.Equal(t, []int64{broken.ID}, cascadeErr.Failed)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.Contains(t, err.Error(), strconv.FormatInt(broken.ID, 10))

	assert.Equal(t, domain.StatusAccepted, e.status(t, target.ID))
	assert.Equal(t, domain.StatusRejected, e.status(t, first.ID))
	assert.Equal(t, domain.StatusPending, e.status(t, broken.ID))
	assert.Equal(t, domain.StatusRejected, e.status(t, last.ID))
}

func TestAcceptanceFailsWhenTargetWriteFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	target := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)
	sibling := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Osaka Univ.").ID)

	apps := NewApplicationService(e.graph, e.withFlakyStatusWrites(target.ID), logger.Nop())
	err := apps.AcceptAndRejectRest(ctx, target.ID)
	require.ErrorIs(t, err, domain.ErrStore)

	var cascadeErr *domain.CascadeError
	assert.False(t, errors.As(err, &cascadeErr))
	assert.Equal(t, domain.StatusPending, e.status(t, target.ID))
	assert.Equal(t, domain.StatusPending, e.status(t, sibling.ID))
}

func TestListApplicationsOrdering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	s2 := e.student(t, "12.222.222-2")
	staff := e.member(t, "22.222.222-2", domain.RoleStaff)
	p := e.program(t, "2025 Cycle")
	tokyo := e.offer(t, p.ID, "Tokyo Univ.")
	osaka := e.offer(t, p.ID, "Osaka Univ.")
	kobe := e.offer(t, p.ID, "Kobe Univ.")

	a1 := e.apply(t, p.ID, s1.ID, tokyo.ID)
	a2 := e.apply(t, p.ID, s2.ID, tokyo.ID)
	a3 := e.apply(t, p.ID, s1.ID, osaka.ID)
	a4 := e.apply(t, p.ID, s1.ID, kobe.ID)

	_, err := e.apps.AddInteraction(ctx, a2.ID, domain.InteractionInput{AuthorID: staff.ID, Kind: domain.InteractionComment, Title: "Reviewing"})
	require.NoError(t, err)

	ids := func(apps []*domain.Application) []int64 {
		out := make([]int64, len(apps))
		for i, a := range apps {
			out[i] = a.ID
		}
		return out
	}

	cases := []struct {
		name   string
		filter domain.ApplicationFilter
		want   []int64
	}{
		{"all", domain.ApplicationFilter{Kind: domain.FilterAll}, []int64{a1.ID, a2.ID, a3.ID, a4.ID}},
		{"student newest first", domain.ApplicationFilter{Kind: domain.FilterByStudent, Value: s1.ID}, []int64{a4.ID, a3.ID, a1.ID}},
		{"pending oldest first", domain.ApplicationFilter{Kind: domain.FilterByStatus, Value: string(domain.StatusPending)}, []int64{a1.ID, a3.ID, a4.ID}},
		{"other status by id", domain.ApplicationFilter{Kind: domain.FilterByStatus, Value: string(domain.StatusUnderReview)}, []int64{a2.ID}},
		{"offer by id", domain.ApplicationFilter{Kind: domain.FilterByOffer, Value: strconv.FormatInt(tokyo.ID, 10)}, []int64{a1.ID, a2.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.apps.ListApplications(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}

	_, err = e.apps.ListApplications(ctx, domain.ApplicationFilter{Kind: "program"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.apps.ListApplications(ctx, domain.ApplicationFilter{Kind: domain.FilterByOffer, Value: "tokyo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServicesHandOutCopies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	p := e.program(t, "2025 Cycle")
	a := e.apply(t, p.ID, s1.ID, e.offer(t, p.ID, "Tokyo Univ.").ID)

	a.Status = domain.StatusAccepted
	a.Interactions = append(a.Interactions, &domain.Interaction{Title: "forged"})

	got, err := e.apps.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Empty(t, got.Interactions)
}

func TestTokyoScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	staff := e.member(t, "22.222.222-2", domain.RoleStaff)
	p := e.program(t, "2025 Cycle")
	c1 := e.offer(t, p.ID, "Tokyo Univ.")
	c2 := e.offer(t, p.ID, "Seoul National Univ.")

	a1 := e.apply(t, p.ID, s1.ID, c1.ID)
	assert.Equal(t, domain.StatusPending, a1.Status)
	a2 := e.apply(t, p.ID, s1.ID, c2.ID)
	assert.Equal(t, domain.StatusPending, a2.Status)

	a1, err := e.apps.AddInteraction(ctx, a1.ID, domain.InteractionInput{
		AuthorID: staff.ID,
		Kind:     domain.InteractionComment,
		Title:    "Documents received",
		Content:  "Reviewing transcript.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, a1.Status)

	require.NoError(t, e.apps.AcceptAndRejectRest(ctx, a1.ID))
	assert.Equal(t, domain.StatusAccepted, e.status(t, a1.ID))
	assert.Equal(t, domain.StatusRejected, e.status(t, a2.ID))
}
