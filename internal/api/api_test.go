package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/insight"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/report"
	"github.com/erazemk/izposoja/internal/store"
)

const testJWTSecret = "test-secret"

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

type testServer struct {
	*httptest.Server
	DB    *sql.DB
	Token string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)

	svc := lending.New(store.NewSQLite(database))
	svc.Now = func() time.Time { return testNow }

	router := NewRouter(Deps{
		DB:       database,
		Tokens:   auth.NewTokens(testJWTSecret),
		Lending:  svc,
		Insights: &insight.Adapter{Generator: insight.Rules{}, Now: svc.Now},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	createUser(t, database, "admin", "password", model.RoleAdmin)

	return &testServer{Server: server, DB: database, Token: login(t, server.URL, "admin", "password")}
}

func createUser(t *testing.T, database *sql.DB, username, password, role string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateUser(context.Background(), database, username, "", hash, role); err != nil {
		t.Fatalf("creating %s: %v", username, err)
	}
}

func login(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request, checks the status and decodes the body
// into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, want int, out any) {
	t.Helper()
	req, err := authRequest(method, s.URL+path, token, body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var msg map[string]any
		json.NewDecoder(resp.Body).Decode(&msg)
		t.Fatalf("%s %s: expected %d, got %d (%v)", method, path, want, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
}

func wheelchair() map[string]string {
	return map[string]string{
		"name":     "Wheelchair",
		"itemCode": "WCH001",
		"category": "Mobility",
		"imageUrl": "https://example.org/wheelchair.jpg",
	}
}

func (s *testServer) addItem(t *testing.T, body map[string]string) itemView {
	t.Helper()
	var item itemView
	s.do(t, "POST", "/api/items", s.Token, body, http.StatusCreated, &item)
	return item
}

func TestLoginEndpoint(t *testing.T) {
	server := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Missing fields.
	body, _ = json.Marshal(map[string]string{"username": "admin"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server := setupTestServer(t)

	server.do(t, "GET", "/api/items", server.Token, nil, http.StatusOK, nil)
	server.do(t, "POST", "/api/auth/logout", server.Token, nil, http.StatusOK, nil)
	server.do(t, "GET", "/api/items", server.Token, nil, http.StatusUnauthorized, nil)

	// A fresh login still works.
	token := login(t, server.URL, "admin", "password")
	server.do(t, "GET", "/api/items", token, nil, http.StatusOK, nil)
}

func TestChangePassword(t *testing.T) {
	server := setupTestServer(t)

	server.do(t, "PUT", "/api/auth/password", server.Token, map[string]string{
		"current_password": "wrong", "new_password": "new-password",
	}, http.StatusUnauthorized, nil)

	server.do(t, "PUT", "/api/auth/password", server.Token, map[string]string{
		"current_password": "password", "new_password": "new-password",
	}, http.StatusOK, nil)

	login(t, server.URL, "admin", "new-password")
}

func TestItemLifecycleAPI(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())

	if item.Status != model.StatusAvailable {
		t.Fatalf("expected Available, got %s", item.Status)
	}
	if !item.DateAdded.Equal(testNow) {
		t.Errorf("dateAdded = %v, want %v", item.DateAdded, testNow)
	}

	// Issue with defaults for issuer, issue date and expected return.
	var issued model.Item
	server.do(t, "POST", "/api/items/"+item.ID+"/issue", server.Token, map[string]string{
		"recipientName":   "Ana Novak",
		"recipientMobile": "0401234567",
	}, http.StatusOK, &issued)

	if issued.Status != model.StatusIssued {
		t.Fatalf("expected Issued, got %s", issued.Status)
	}
	if issued.IssuerName != "admin" {
		t.Errorf("issuer = %q, want admin", issued.IssuerName)
	}
	wantDue := startOfDay(testNow).AddDate(0, 0, store.DefaultLoanDays)
	if issued.ExpectedReturnDate == nil || !issued.ExpectedReturnDate.Equal(wantDue) {
		t.Errorf("expected return = %v, want %v", issued.ExpectedReturnDate, wantDue)
	}

	// Issuing again is an invalid transition.
	var conflict map[string]string
	server.do(t, "POST", "/api/items/"+item.ID+"/issue", server.Token, map[string]string{
		"recipientName":   "Ana Novak",
		"recipientMobile": "0401234567",
	}, http.StatusConflict, &conflict)
	if conflict["code"] != "InvalidTransition" {
		t.Errorf("expected InvalidTransition code, got %v", conflict)
	}

	var returned model.Item
	server.do(t, "POST", "/api/items/"+item.ID+"/return", server.Token, map[string]string{
		"collectedBy": "Marko",
	}, http.StatusOK, &returned)
	if returned.Status != model.StatusAvailable || returned.ActualReturnDate == nil {
		t.Fatalf("unexpected returned item: %+v", returned)
	}
	if returned.CollectedBy != "Marko" {
		t.Errorf("collectedBy = %q", returned.CollectedBy)
	}

	// Returning an available item is an invalid transition.
	server.do(t, "POST", "/api/items/"+item.ID+"/return", server.Token, map[string]string{}, http.StatusConflict, nil)

	var history []model.LoanEvent
	server.do(t, "GET", "/api/items/"+item.ID+"/history", server.Token, nil, http.StatusOK, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(history))
	}
	if history[0].Kind != model.LoanEventReturned || history[1].Kind != model.LoanEventIssued {
		t.Errorf("history not newest first: %s, %s", history[0].Kind, history[1].Kind)
	}
	if history[1].RecordedBy != "admin" {
		t.Errorf("recordedBy = %q", history[1].RecordedBy)
	}
}

func TestCreateItemValidation(t *testing.T) {
	server := setupTestServer(t)

	body := wheelchair()
	body["itemCode"] = "AB12C"
	var resp validationResponse
	server.do(t, "POST", "/api/items", server.Token, body, http.StatusUnprocessableEntity, &resp)

	if len(resp.Fields) != 1 || resp.Fields[0].Rule != model.RuleCodeLength {
		t.Fatalf("expected one code_length error, got %+v", resp.Fields)
	}

	// Duplicate code.
	server.addItem(t, wheelchair())
	server.do(t, "POST", "/api/items", server.Token, wheelchair(), http.StatusUnprocessableEntity, &resp)
	if len(resp.Fields) != 1 || resp.Fields[0].Rule != model.RuleCodeUnique {
		t.Fatalf("expected code_unique error, got %+v", resp.Fields)
	}

	// Dates in the future are rejected.
	body = wheelchair()
	body["itemCode"] = "WCH002"
	body["dateAdded"] = testNow.AddDate(0, 0, 2).Format(time.DateOnly)
	server.do(t, "POST", "/api/items", server.Token, body, http.StatusUnprocessableEntity, &resp)
	if len(resp.Fields) != 1 || resp.Fields[0].Rule != model.RuleDateInFuture {
		t.Fatalf("expected date_in_future error, got %+v", resp.Fields)
	}

	// Malformed dates are a bad request.
	body["dateAdded"] = "10.3.2025"
	server.do(t, "POST", "/api/items", server.Token, body, http.StatusBadRequest, nil)
}

func TestUpdateItem(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())

	body := wheelchair()
	body["status"] = "repair"
	body["description"] = "Broken brake"
	var updated itemView
	server.do(t, "PUT", "/api/items/"+item.ID, server.Token, body, http.StatusOK, &updated)
	if updated.Status != model.StatusRepair || updated.Description != "Broken brake" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// Edits cannot issue an item.
	body["status"] = "Issued"
	server.do(t, "PUT", "/api/items/"+item.ID, server.Token, body, http.StatusConflict, nil)

	server.do(t, "PUT", "/api/items/missing", server.Token, wheelchair(), http.StatusNotFound, nil)
}

func TestDeleteItem(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())

	server.do(t, "DELETE", "/api/items/"+item.ID, server.Token, nil, http.StatusOK, nil)
	server.do(t, "GET", "/api/items/"+item.ID, server.Token, nil, http.StatusNotFound, nil)
	server.do(t, "DELETE", "/api/items/"+item.ID, server.Token, nil, http.StatusNotFound, nil)
}

func TestListItemsFilter(t *testing.T) {
	server := setupTestServer(t)
	server.addItem(t, wheelchair())
	crutches := server.addItem(t, map[string]string{
		"name": "Crutches", "itemCode": "CRT001", "category": "Mobility",
		"imageUrl": "https://example.org/crutches.jpg",
	})

	server.do(t, "POST", "/api/items/"+crutches.ID+"/issue", server.Token, map[string]string{
		"recipientName":      "Ana Novak",
		"recipientMobile":    "0401234567",
		"issueDate":          "2025-02-01",
		"expectedReturnDate": "2025-02-15",
	}, http.StatusOK, nil)

	tests := []struct {
		filter string
		want   int
	}{
		{"", 2},
		{"Available", 1},
		{"issued", 1},
		{"Overdue", 1},
		{"Repair", 0},
	}
	for _, tt := range tests {
		var items []itemView
		server.do(t, "GET", "/api/items?status="+tt.filter, server.Token, nil, http.StatusOK, &items)
		if len(items) != tt.want {
			t.Errorf("filter %q: expected %d items, got %d", tt.filter, tt.want, len(items))
		}
	}

	var overdue []itemView
	server.do(t, "GET", "/api/items?status=Overdue", server.Token, nil, http.StatusOK, &overdue)
	if len(overdue) == 1 && (!overdue[0].Overdue || overdue[0].DisplayStatus != model.StatusOverdue) {
		t.Errorf("overdue item not marked: %+v", overdue[0])
	}

	server.do(t, "GET", "/api/items?status=Lost", server.Token, nil, http.StatusBadRequest, nil)
}

func TestStatsAndInsights(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())
	server.do(t, "POST", "/api/items/"+item.ID+"/issue", server.Token, map[string]string{
		"recipientName":      "Ana Novak",
		"recipientMobile":    "0401234567",
		"issueDate":          "2025-02-01",
		"expectedReturnDate": "2025-02-15",
	}, http.StatusOK, nil)

	var stats statsResponse
	server.do(t, "GET", "/api/stats", server.Token, nil, http.StatusOK, &stats)
	if stats.Total != 1 || stats.Issued != 1 || stats.Overdue != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.Bars) != 4 {
		t.Errorf("expected 4 bars, got %d", len(stats.Bars))
	}

	var result insight.Result
	server.do(t, "POST", "/api/insights", server.Token, nil, http.StatusOK, &result)
	if result.Error != "" {
		t.Fatalf("unexpected insight error: %s", result.Error)
	}
	if len(result.Insights) != 1 || result.Insights[0].Item != "Wheelchair" {
		t.Errorf("unexpected insights: %+v", result.Insights)
	}
}

func TestActivityReport(t *testing.T) {
	server := setupTestServer(t)
	server.addItem(t, wheelchair())

	var a report.Activity
	server.do(t, "GET", "/api/reports/activity?from=2025-03-01&to=2025-03-10", server.Token, nil, http.StatusOK, &a)
	if a.Added != 1 || a.Issued != 0 {
		t.Errorf("unexpected activity: %+v", a)
	}

	server.do(t, "GET", "/api/reports/activity?from=2025-02-01&to=2025-02-28", server.Token, nil, http.StatusOK, &a)
	if a.Added != 0 {
		t.Errorf("expected nothing added in February, got %d", a.Added)
	}

	server.do(t, "GET", "/api/reports/activity?from=yesterday", server.Token, nil, http.StatusBadRequest, nil)
}

func TestExportThenImport(t *testing.T) {
	server := setupTestServer(t)
	server.addItem(t, wheelchair())

	req, _ := authRequest("GET", server.URL+"/api/reports/export", server.Token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}

	var workbook bytes.Buffer
	workbook.ReadFrom(resp.Body)

	// Importing the export into a fresh server restores the item.
	other := setupTestServer(t)
	var res importResponse
	other.upload(t, "/api/items/import", "file", "report.xlsx", workbook.Bytes(), http.StatusOK, &res)
	if len(res.Added) != 1 || res.Added[0].ItemCode != "WCH001" {
		t.Fatalf("unexpected import result: %+v", res)
	}

	// Importing it again rejects the duplicate on its sheet line.
	other.upload(t, "/api/items/import", "file", "report.xlsx", workbook.Bytes(), http.StatusOK, &res)
	if len(res.Added) != 0 || len(res.Rejected) != 1 || res.Rejected[0].Line != 2 {
		t.Fatalf("unexpected reimport result: %+v", res)
	}
}

func TestImportRejectsBadRows(t *testing.T) {
	server := setupTestServer(t)

	f := excelize.NewFile()
	rows := [][]any{
		{"Name", "Item Code", "Category", "Image URL", "Status"},
		{"Walker", "WLK001", "Mobility", "https://example.org/walker.jpg", "Available"},
		{"Cane", "C1", "Mobility", "https://example.org/cane.jpg", ""},
		{"Bed", "BED001", "Furniture", "https://example.org/bed.jpg", "Lost"},
		{"Hoist", "HST001", "Lifting", "https://example.org/hoist.jpg", "Issued"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetSheetRow("Sheet1", cell, &row)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	var res importResponse
	server.upload(t, "/api/items/import", "file", "items.xlsx", buf.Bytes(), http.StatusOK, &res)
	if len(res.Added) != 1 || res.Added[0].Name != "Walker" {
		t.Fatalf("expected only Walker to be added, got %+v", res.Added)
	}

	lines := map[int]bool{}
	for _, rej := range res.Rejected {
		lines[rej.Line] = true
	}
	for _, line := range []int{3, 4, 5} {
		if !lines[line] {
			t.Errorf("expected line %d to be rejected, got %+v", line, res.Rejected)
		}
	}
}

func (s *testServer) upload(t *testing.T, path, field, filename string, data []byte, want int, out any) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile(field, filename)
	fw.Write(data)
	mw.Close()

	method := "POST"
	if field == "image" {
		method = "PUT"
	}
	req, _ := http.NewRequest(method, s.URL+path, &body)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", method, path, want, resp.StatusCode)
	}
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
}

func TestUploadImage(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())

	var updated itemView
	server.upload(t, "/api/items/"+item.ID+"/image", "image", "photo.png", testPNG(t), http.StatusOK, &updated)
	if !bytes.HasPrefix([]byte(updated.ImageURL), []byte("data:image/jpeg;base64,")) {
		t.Errorf("expected JPEG data URI, got %.40q", updated.ImageURL)
	}

	server.upload(t, "/api/items/"+item.ID+"/image", "image", "notes.txt", []byte("not an image"), http.StatusBadRequest, nil)
}

func TestUnauthenticatedAccess(t *testing.T) {
	server := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	server.do(t, "GET", "/api/items", "garbage", nil, http.StatusUnauthorized, nil)
}

func TestRoleBasedAccess(t *testing.T) {
	server := setupTestServer(t)
	item := server.addItem(t, wheelchair())

	createUser(t, server.DB, "volunteer", "password", model.RoleVolunteer)
	token := login(t, server.URL, "volunteer", "password")

	// Volunteers cannot change the item list.
	body := wheelchair()
	body["itemCode"] = "WCH002"
	server.do(t, "POST", "/api/items", token, body, http.StatusForbidden, nil)
	server.do(t, "DELETE", "/api/items/"+item.ID, token, nil, http.StatusForbidden, nil)

	// They can lend items.
	server.do(t, "POST", "/api/items/"+item.ID+"/issue", token, map[string]string{
		"recipientName":   "Ana Novak",
		"recipientMobile": "0401234567",
	}, http.StatusOK, nil)

	// Volunteers should not access /api/users.
	server.do(t, "GET", "/api/users", token, nil, http.StatusForbidden, nil)
}

func TestUsersAPIFlow(t *testing.T) {
	server := setupTestServer(t)

	var user model.User
	server.do(t, "POST", "/api/users", server.Token, map[string]string{
		"username": "marko", "display_name": "Marko Horvat", "password": "password", "role": model.RoleCoordinator,
	}, http.StatusCreated, &user)
	if user.DisplayName != "Marko Horvat" || user.Role != model.RoleCoordinator {
		t.Fatalf("unexpected user: %+v", user)
	}

	server.do(t, "POST", "/api/users", server.Token, map[string]string{
		"username": "marko", "password": "password", "role": model.RoleVolunteer,
	}, http.StatusConflict, nil)

	server.do(t, "POST", "/api/users", server.Token, map[string]string{
		"username": "ana", "password": "password", "role": "owner",
	}, http.StatusBadRequest, nil)

	id := itoa(user.ID)
	server.do(t, "PUT", "/api/users/"+id, server.Token, map[string]string{"role": model.RoleVolunteer}, http.StatusOK, &user)
	if user.Role != model.RoleVolunteer || user.DisplayName != "Marko Horvat" {
		t.Errorf("unexpected update result: %+v", user)
	}

	var users []model.User
	server.do(t, "GET", "/api/users", server.Token, nil, http.StatusOK, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	server.do(t, "DELETE", "/api/users/"+id, server.Token, nil, http.StatusOK, nil)
	server.do(t, "GET", "/api/users/"+id, server.Token, nil, http.StatusNotFound, nil)
}

func TestCannotDeleteSelf(t *testing.T) {
	server := setupTestServer(t)

	admin, err := store.GetUserByUsername(context.Background(), server.DB, "admin")
	if err != nil || admin == nil {
		t.Fatalf("admin lookup: %v", err)
	}
	server.do(t, "DELETE", "/api/users/"+itoa(admin.ID), server.Token, nil, http.StatusBadRequest, nil)
}
