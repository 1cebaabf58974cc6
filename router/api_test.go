package router

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func TestTeamManagementMountedUnderExecom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	r := NewGinRouter(mockDB, nil)

	mounted := make(map[string]bool)
	for _, route := range r.Routes() {
		mounted[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /dashboard/execom/team",
		"POST /dashboard/execom/team",
		"PUT /dashboard/execom/team/:id",
		"DELETE /dashboard/execom/team/:id",
		"GET /team",
	} {
		if !mounted[want] {
			t.Errorf("route %q not mounted", want)
		}
	}
	for _, stray := range []string{
		"POST /dashboard/admin/team",
		"PUT /dashboard/admin/team/:id",
		"DELETE /dashboard/admin/team/:id",
	} {
		if mounted[stray] {
			t.Errorf("route %q mounted; team management belongs to the execom dashboard", stray)
		}
	}
}
