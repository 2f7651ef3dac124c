package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"exchangeflow/internal/domain"
)

func TestRegisterUserValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.student(t, "11.111.111-1")

	cases := []struct {
		name  string
		input domain.UserInput
		want  error
	}{
		{"duplicate id", domain.UserInput{ID: "11.111.111-1", Name: "Ana", Password: "x", Role: domain.RoleStudent, Student: &domain.StudentProfile{}}, domain.ErrUserExists},
		{"missing id", domain.UserInput{Name: "Ana", Password: "x", Role: domain.RoleStaff}, domain.ErrInvalidInput},
		{"missing password", domain.UserInput{ID: "1-9", Name: "Ana", Role: domain.RoleStaff}, domain.ErrInvalidInput},
		{"unknown role", domain.UserInput{ID: "1-9", Name: "Ana", Password: "x", Role: "dean"}, domain.ErrInvalidInput},
		{"student without profile", domain.UserInput{ID: "1-9", Name: "Ana", Password: "x", Role: domain.RoleStudent}, domain.ErrInvalidInput},
		{"staff with profile", domain.UserInput{ID: "1-9", Name: "Ana", Password: "x", Role: domain.RoleStaff, Student: &domain.StudentProfile{}}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.users.RegisterUser(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	users, err := e.users.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterUserHashesPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.student(t, "11.111.111-1")

	stored, err := e.repos.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, password, stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)))
	require.NotNil(t, stored.Student)
	assert.Equal(t, "Engineering", stored.Student.Major)
}

func TestUpdateProfileKeepsRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1 := e.student(t, "11.111.111-1")
	staff := e.member(t, "22.222.222-2", domain.RoleStaff)

	name := "Ana María Rojas"
	newPassword := "n3w-secret"
	got, err := e.users.UpdateProfile(ctx, s1.ID, domain.ProfileInput{
		Name:     &name,
		Password: &newPassword,
		Student:  &domain.StudentProfile{Major: "Architecture", GPA: 6.4, Semesters: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, domain.RoleStudent, got.Role)
	assert.Equal(t, "Architecture", got.Student.Major)

	_, err = e.auth.Login(ctx, s1.ID, newPassword)
	require.NoError(t, err)

	reloaded, err := e.reopen(t).users.GetUser(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, name, reloaded.Name)
	assert.Equal(t, 8, reloaded.Student.Semesters)

	_, err = e.users.UpdateProfile(ctx, staff.ID, domain.ProfileInput{Student: &domain.StudentProfile{Major: "Law"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.users.UpdateProfile(ctx, "nobody", domain.ProfileInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUsersByRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.student(t, "11.111.111-1")
	e.student(t, "12.222.222-2")
	e.member(t, "22.222.222-2", domain.RoleStaff)

	students, err := e.users.ListUsers(ctx, domain.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	staff, err := e.users.ListUsers(ctx, domain.RoleStaff)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Nil(t, staff[0].Student)

	_, err = e.users.ListUsers(ctx, "dean")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegisterUserTrimsIDBeforeDuplicateCheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.student(t, "11.111.111-1")

	_, err := e.users.RegisterUser(ctx, domain.UserInput{
		ID:       " 11.111.111-1 ",
		Name:     "Ana",
		Password: password,
		Role:     domain.RoleStudent,
		Student:  &domain.StudentProfile{Major: "Law"},
	})
	require.ErrorIs(t, err, domain.ErrUserExists)
	assert.NotErrorIs(t, err, domain.ErrStore)

	u, err := e.users.RegisterUser(ctx, domain.UserInput{ID: " 22.222.222-2\t", Name: "Bea", Password: password, Role: domain.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, "22.222.222-2", u.ID)
}

func TestSignUpRequiresStaffOnceStaffExists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	staffInput := func(id string, role domain.Role) domain.UserInput {
		return domain.UserInput{ID: id, Name: "Member " + id, Password: password, Role: role}
	}

	first, err := e.users.SignUp(ctx, staffInput("22.222.222-2", domain.RoleStaff), nil)
	require.NoError(t, err)

	_, err = e.users.SignUp(ctx, staffInput("23.333.333-3", domain.RoleAuditor), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	student, err := e.users.SignUp(ctx, domain.UserInput{
		ID:       "11.111.111-1",
		Name:     "Ana",
		Password: password,
		Role:     domain.RoleStudent,
		Student:  &domain.StudentProfile{Major: "Law"},
	}, nil)
	require.NoError(t, err)

	_, err = e.users.SignUp(ctx, staffInput("23.333.333-3", domain.RoleStaff), student)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.users.SignUp(ctx, staffInput("23.333.333-3", domain.RoleAuditor), first)
	assert.NoError(t, err)
}

func TestSignUpBootstrapsOneStaffUnderContention(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ids := []string{"21.111.111-1", "22.222.222-2", "23.333.333-3", "24.444.444-4"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = e.users.SignUp(ctx, domain.UserInput{ID: id, Name: "Member", Password: password, Role: domain.RoleStaff}, nil)
		}(i, id)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	}
	assert.Equal(t, 1, created)

	staff, err := e.users.ListUsers(ctx, domain.RoleStaff)
	require.NoError(t, err)
	assert.Len(t, staff, 1)
}
