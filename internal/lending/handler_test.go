package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type fakeLending struct {
	lastFilter ListFilter
	lastPage   Page
	issueErr   error
}

func (f *fakeLending) Issue(_ context.Context, s, b string) (LendResult, error) {
	if f.issueErr != nil {
		return LendResult{}, f.issueErr
	}
	return LendResult{
		Transaction: Transaction{ID: newTxID, StudentID: s, BookID: b, Type: TypeIssue, Status: StatusActive, IssueDate: testNow},
		UpdatedBook: catalog.Book{ID: b, TotalCopies: 2, AvailableCopies: 1},
	}, nil
}

func (f *fakeLending) Return(_ context.Context, s, b string) (LendResult, error) {
	return LendResult{
		Transaction: Transaction{ID: newTxID, StudentID: s, BookID: b, Type: TypeReturn, Status: StatusReturned, IssueID: issueTxID},
		UpdatedBook: catalog.Book{ID: b, TotalCopies: 2, AvailableCopies: 2},
	}, nil
}

func (f *fakeLending) List(_ context.Context, lf ListFilter, p Page) (ListResult, error) {
	f.lastFilter, f.lastPage = lf, p
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	return ListResult{Items: []Transaction{{ID: issueTxID}}, Total: 11, Page: p}, nil
}

func (f *fakeLending) Get(_ context.Context, id string) (Transaction, error) {
	if id != issueTxID {
		return Transaction{}, errTxNotFound
	}
	return Transaction{ID: id}, nil
}

func (f *fakeLending) ActiveIssues(context.Context, string) ([]Transaction, error) {
	return []Transaction{{ID: issueTxID}, {ID: newTxID}}, nil
}

func newRouter(svc LendingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api"), svc)
	return r
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Issue(t *testing.T) {
	r := newRouter(&fakeLending{})

	w := send(r, http.MethodPost, "/api/transactions/issue", LendRequest{StudentID: studentID, BookID: bookID})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp LendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Book issued successfully", resp.Message)
	assert.Equal(t, TypeIssue, resp.Transaction.Type)
	assert.Equal(t, 1, resp.UpdatedBook.AvailableCopies)

	w = send(r, http.MethodPost, "/api/transactions/issue", map[string]string{"studentId": studentID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_IssueConflictIs400(t *testing.T) {
	r := newRouter(&fakeLending{issueErr: errNoCopies})

	w := send(r, http.MethodPost, "/api/transactions/issue", LendRequest{StudentID: studentID, BookID: bookID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body apperr.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperr.CodeConflict, body.Code)
	assert.Equal(t, "no copies available to issue", body.Message)
}

func TestHandler_Return(t *testing.T) {
	r := newRouter(&fakeLending{})
	w := send(r, http.MethodPost, "/api/transactions/return", LendRequest{StudentID: studentID, BookID: bookID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"issueId":"`+issueTxID+`"`)
}

func TestHandler_List(t *testing.T) {
	f := &fakeLending{}
	r := newRouter(f)

	w := send(r, http.MethodGet, "/api/transactions?page=2&limit=5&type=issue&status=active&studentId="+studentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Page{Page: 2, Limit: 5}, f.lastPage)
	assert.Equal(t, ListFilter{StudentID: studentID, Type: TypeIssue, Status: StatusActive}, f.lastFilter)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.CurrentPage)
	assert.Equal(t, int64(11), resp.Total)
	// 学生・本が解決できない行は null で返す
	assert.Contains(t, w.Body.String(), `"student":null`)

	w = send(r, http.MethodGet, "/api/transactions?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetAndActive(t *testing.T) {
	r := newRouter(&fakeLending{})

	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/transactions/"+issueTxID, nil).Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodGet, "/api/transactions/"+newTxID, nil).Code)

	w := send(r, http.MethodGet, "/api/transactions/student/"+studentID+"/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ActiveIssuesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.ActiveIssues, 2)
}
