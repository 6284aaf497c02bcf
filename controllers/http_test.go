package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cppla/qaboard/middleware"
	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
	"github.com/cppla/qaboard/votes"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "handler-test-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// testActorGate stands in for the auth gate: it reads the acting user ID
// from a test header and injects it the way the JWT middleware would.
func testActorGate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if raw := ctx.GetHeader("X-Test-Actor"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
				ctx.Set(middleware.ContextUserIDKey, uint(id))
			}
		}
		ctx.Next()
	}
}

func newTestRouter(st *store.Store) *gin.Engine {
	ledger := votes.NewLedger(st.Questions, st.Answers)
	tree := votes.NewReplyTree(st.Answers)
	qc := NewQuestionController(st, ledger)
	ac := NewAnswerController(st, ledger, tree)

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/questions", qc.ListQuestions)

	protected := api.Group("")
	protected.Use(testActorGate())
	protected.POST("/questions", qc.CreateQuestion)
	protected.POST("/questions/:id/upvote", qc.UpvoteQuestion)
	protected.POST("/answers/:id", ac.CreateAnswer)
	protected.POST("/answers/:id/reply", ac.CreateReply)
	protected.POST("/answers/:id/upvote", ac.UpvoteAnswer)
	protected.POST("/answers/:id/reply/:replyId/upvote", ac.UpvoteReply)
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, actor uint, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != 0 {
		req.Header.Set("X-Test-Actor", strconv.FormatUint(uint64(actor), 10))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func seedUser(t *testing.T, st *store.Store, username string) uint {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, st.Users.Create(context.Background(), u))
	return u.ID
}

func TestCreateQuestionValidation(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/questions", 1, gin.H{"content": "no title"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/questions", 1, gin.H{"title": " ", "content": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuestionUpvoteToggle(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)
	u1 := seedUser(t, st, "asker")
	u2 := seedUser(t, st, "voter")

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/questions", u1, gin.H{
		"title":   "why does defer run LIFO",
		"content": "stack semantics?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Question struct {
			ID      uint `json:"id"`
			Upvotes int  `json:"upvotes"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, 0, created.Question.Upvotes)
	qid := created.Question.ID

	upvote := func(actor uint) int {
		w, env := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/questions/%d/upvote", qid), actor, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got struct {
			Question struct {
				Upvotes int    `json:"upvotes"`
				Voters  []uint `json:"voters"`
			} `json:"question"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Len(t, got.Question.Voters, got.Question.Upvotes)
		return got.Question.Upvotes
	}

	require.Equal(t, 1, upvote(u2))
	require.Equal(t, 0, upvote(u2))
	require.Equal(t, 1, upvote(u2))
	require.Equal(t, 2, upvote(u1))
}

func TestUpvoteRequiresActor(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)
	u1 := seedUser(t, st, "asker")

	_, env := doJSON(t, r, http.MethodPost, "/api/v1/questions", u1, gin.H{"title": "t", "content": "c"})
	var created struct {
		Question struct {
			ID uint `json:"id"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/questions/%d/upvote", created.Question.ID), 0, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpvoteMissingQuestion(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/questions/424242/upvote", 1, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnswerAndReplyFlow(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)
	u1 := seedUser(t, st, "asker")
	u2 := seedUser(t, st, "helper")

	_, env := doJSON(t, r, http.MethodPost, "/api/v1/questions", u1, gin.H{"title": "channels", "content": "how"})
	var createdQ struct {
		Question struct {
			ID uint `json:"id"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &createdQ))

	w, env := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/answers/%d", createdQ.Question.ID), u2, gin.H{"content": "use select"})
	require.Equal(t, http.StatusOK, w.Code)
	var createdA struct {
		Answer struct {
			ID         uint `json:"id"`
			QuestionID uint `json:"question_id"`
		} `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &createdA))
	require.Equal(t, createdQ.Question.ID, createdA.Answer.QuestionID)

	// Answer to a question that does not exist.
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/answers/424242", u2, gin.H{"content": "nope"})
	require.Equal(t, http.StatusNotFound, w.Code)

	// Multipart reply without attachment.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", "thanks"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/answers/%d/reply", createdA.Answer.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-Actor", strconv.FormatUint(uint64(u1), 10))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var replyEnv envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replyEnv))
	var createdR struct {
		Reply struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(replyEnv.Data, &createdR))
	require.Equal(t, "thanks", createdR.Reply.Content)

	// Toggle a vote on the reply via its composite key.
	w, env = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/answers/%d/reply/%s/upvote", createdA.Answer.ID, createdR.Reply.ID), u2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggled struct {
		Upvotes int `json:"upvotes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	require.Equal(t, 1, toggled.Upvotes)

	// Unknown reply ID under a valid answer.
	w, _ = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/answers/%d/reply/%s/upvote", createdA.Answer.ID, "missing"), u2, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListQuestionsSearchAndSort(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)
	u1 := seedUser(t, st, "gopher")

	post := func(title, content string) uint {
		_, env := doJSON(t, r, http.MethodPost, "/api/v1/questions", u1, gin.H{"title": title, "content": content})
		var created struct {
			Question struct {
				ID uint `json:"id"`
			} `json:"question"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &created))
		return created.Question.ID
	}

	qChan := post("Channel deadlock", "goroutine stuck on send")
	post("Slice growth", "append reallocation")
	qMap := post("Map iteration order", "seems random, CHANNELs unrelated")

	// Upvote the map question so upvote-sort differs from recency.
	_, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/questions/%d/upvote", qMap), u1, nil)

	list := func(query string) []struct {
		ID      uint   `json:"id"`
		Title   string `json:"title"`
		Upvotes int    `json:"upvotes"`
		Author  struct {
			Username string `json:"username"`
		} `json:"author"`
		Answers []json.RawMessage `json:"answers"`
	} {
		w, env := doJSON(t, r, http.MethodGet, "/api/v1/questions"+query, 0, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var payload struct {
			Items []struct {
				ID      uint   `json:"id"`
				Title   string `json:"title"`
				Upvotes int    `json:"upvotes"`
				Author  struct {
					Username string `json:"username"`
				} `json:"author"`
				Answers []json.RawMessage `json:"answers"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		return payload.Items
	}

	// Case-insensitive substring match over title and content.
	items := list("?search=channel")
	require.Len(t, items, 2)
	ids := []uint{items[0].ID, items[1].ID}
	require.Contains(t, ids, qChan)
	require.Contains(t, ids, qMap)

	// Sorted by votes, the upvoted question leads regardless of recency.
	items = list("?search=channel&sortBy=upvotes")
	require.Equal(t, qMap, items[0].ID)
	require.Equal(t, 1, items[0].Upvotes)
	require.Equal(t, "gopher", items[0].Author.Username)
}

func TestListNestsAnswersWithOwners(t *testing.T) {
	_, st := newFakeStore()
	r := newTestRouter(st)
	u1 := seedUser(t, st, "asker")
	u2 := seedUser(t, st, "helper")

	_, env := doJSON(t, r, http.MethodPost, "/api/v1/questions", u1, gin.H{"title": "generics", "content": "constraints"})
	var createdQ struct {
		Question struct {
			ID uint `json:"id"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &createdQ))

	for _, body := range []string{"first answer", "second answer"} {
		w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/answers/%d", createdQ.Question.ID), u2, gin.H{"content": body})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/questions?search=generics", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Items []struct {
			Answers []struct {
				Content string `json:"content"`
				Author  struct {
					Username string `json:"username"`
				} `json:"author"`
			} `json:"answers"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Items, 1)
	require.Len(t, payload.Items[0].Answers, 2)
	// Insertion order preserved, owners reduced to display attributes.
	require.Equal(t, "first answer", payload.Items[0].Answers[0].Content)
	require.Equal(t, "helper", payload.Items[0].Answers[0].Author.Username)
}

func TestAuthGateBlocksAnonymous(t *testing.T) {
	_, st := newFakeStore()
	ledger := votes.NewLedger(st.Questions, st.Answers)
	qc := NewQuestionController(st, ledger)

	// Mount the real JWT middleware: no Authorization header means 401
	// before the handler runs.
	r := gin.New()
	r.POST("/api/v1/questions", middleware.AuthRequired(), qc.CreateQuestion)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/questions", 0, gin.H{"title": "t", "content": "c"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthGatePassesValidToken(t *testing.T) {
	_, st := newFakeStore()
	u1 := seedUser(t, st, "tokenuser")
	ledger := votes.NewLedger(st.Questions, st.Answers)
	qc := NewQuestionController(st, ledger)

	r := gin.New()
	r.POST("/api/v1/questions", middleware.AuthRequired(), qc.CreateQuestion)

	token, err := utils.GenerateToken(u1, "tokenuser", tokenTTL)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(gin.H{"title": "jwt works", "content": "yes"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
