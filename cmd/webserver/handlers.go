package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"versequiz"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const sessionName = "versequiz-session"

// page is the data every template receives
type page struct {
	Alerts       []string
	Session      int
	Overall      int
	ScoreEnabled bool
	Eligible     int
	Threshold    int
	SyncError    string
	Data         map[string]interface{}
}

// currentUser resolves the user behind a request, minting an anonymous id for new visitors
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*sessions.Session, *userState, error) {
	session, _ := s.store.Get(r, sessionName)

	userID, _ := session.Values["user_id"].(string)
	if userID == "" {
		userID = uuid.NewString()
		session.Values["user_id"] = userID
		if err := session.Save(r, w); err != nil {
			log.Printf("Session save error: %v", err)
		}
		log.Printf("New visitor %s", userID)
	}

	u, err := s.users.Get(r.Context(), userID)
	if err != nil {
		return nil, nil, err
	}
	return session, u, nil
}

func (s *Server) render(w http.ResponseWriter, name string, u *userState, data map[string]interface{}) {
	p := page{
		Alerts:       u.takeAlerts(),
		Session:      u.scores.Session(),
		Overall:      u.scores.Overall(),
		ScoreEnabled: u.library.ScoreEnabled(),
		Eligible:     u.library.EligibleChapterCount(),
		Threshold:    versequiz.MinChaptersEnabledForScore,
		Data:         data,
	}
	if u.syncErr != nil {
		p.SyncError = "Your score could not be synced with the server. It is saved on this device."
	}

	if err := s.templates[name].ExecuteTemplate(w, "base.html", p); err != nil {
		log.Printf("Template error in %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// withUser locks the user for the duration of the handler
func (s *Server) withUser(w http.ResponseWriter, r *http.Request, fn func(*sessions.Session, *userState)) {
	session, u, err := s.currentUser(w, r)
	if err != nil {
		log.Printf("Failed to load user: %v", err)
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}
	defer s.users.Release(u)
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(session, u)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.withUser(w, r, func(_ *sessions.Session, u *userState) {
		if r.Method == "POST" && r.FormValue("action") == "sync" {
			_, u.syncErr = u.scores.Sync(r.Context())
		}
		s.render(w, "home", u, nil)
	})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, func(_ *sessions.Session, u *userState) {
		if r.Method == "POST" {
			book := r.FormValue("book")
			enabled, err := u.library.ToggleBook(r.Context(), book)
			if err != nil {
				u.addAlert("Could not toggle %s: %v", book, err)
			} else if enabled {
				u.addAlert("%s enabled.", book)
			} else {
				u.addAlert("%s disabled.", book)
			}
			http.Redirect(w, r, "/books", http.StatusSeeOther)
			return
		}

		s.render(w, "books", u, map[string]interface{}{
			"Books": u.library.Books(),
		})
	})
}

// handleBook routes /books/{book}, /books/{book}/chapter, /books/{book}/bulk and /books/{book}/shift
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.Split(path, "/")

	book, err := url.PathUnescape(parts[0])
	if err != nil || book == "" {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.corpus.Book(book); !ok {
		http.NotFound(w, r)
		return
	}

	s.withUser(w, r, func(_ *sessions.Session, u *userState) {
		if len(parts) == 1 {
			view, err := u.library.Book(book)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			s.render(w, "book", u, map[string]interface{}{
				"Book": view,
			})
			return
		}

		if len(parts) != 2 || r.Method != "POST" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		before, _ := u.library.Book(book)
		switch parts[1] {
		case "chapter":
			s.setChapterRarity(r, u, book)
		case "bulk":
			s.bulkApply(r, u, book)
		case "shift":
			s.bulkShift(r, u, book)
		default:
			http.NotFound(w, r)
			return
		}
		if after, err := u.library.Book(book); err == nil && before.Enabled && !after.Enabled {
			u.addAlert("Every chapter of %s was disabled, so the book is now off and its chapters are back to common.", book)
		}
		http.Redirect(w, r, "/books/"+url.PathEscape(book), http.StatusSeeOther)
	})
}

func (s *Server) setChapterRarity(r *http.Request, u *userState, book string) {
	chapter, err := strconv.Atoi(r.FormValue("chapter"))
	if err != nil {
		u.addAlert("Invalid chapter %q", r.FormValue("chapter"))
		return
	}
	rarity, err := versequiz.ParseRarity(r.FormValue("rarity"))
	if err != nil {
		u.addAlert("%v", err)
		return
	}
	if err := u.library.SetChapterRarity(r.Context(), book, chapter, rarity, true); err != nil {
		u.addAlert("Could not update %s %d: %v", book, chapter, err)
		return
	}
}

// parseRange reads the from/to fields of a bulk edit form
func parseRange(r *http.Request, book string) (int, int, error) {
	from, errFrom := strconv.Atoi(strings.TrimSpace(r.FormValue("from")))
	to, errTo := strconv.Atoi(strings.TrimSpace(r.FormValue("to")))
	if errFrom != nil || errTo != nil {
		return 0, 0, &versequiz.InvalidRangeError{Book: book, From: from, To: to, Reason: "chapters must be numbers"}
	}
	return from, to, nil
}

func (s *Server) bulkApply(r *http.Request, u *userState, book string) {
	from, to, err := parseRange(r, book)
	if err != nil {
		u.addAlert("Invalid Range: %v", err)
		return
	}

	filter := versequiz.AllRarities()
	if r.FormValue("all") == "" {
		var selected []versequiz.Rarity
		for _, v := range r.Form["from_rarity"] {
			rarity, err := versequiz.ParseRarity(v)
			if err != nil {
				u.addAlert("%v", err)
				return
			}
			selected = append(selected, rarity)
		}
		filter = versequiz.OnlyRarities(selected...)
	}

	toRarity, err := versequiz.ParseRarity(r.FormValue("to_rarity"))
	if err != nil {
		u.addAlert("%v", err)
		return
	}

	n, err := u.library.BulkApplyRarity(r.Context(), book, from, to, filter, toRarity)
	var rangeErr *versequiz.InvalidRangeError
	switch {
	case errors.As(err, &rangeErr):
		u.addAlert("Invalid Range: %s", rangeErr.Reason)
		return
	case errors.Is(err, versequiz.ErrNoMatch):
		u.addAlert("No chapters in %d-%d have the selected rarities.", from, to)
		return
	case err != nil:
		u.addAlert("Could not apply rarity: %v", err)
		return
	}
	u.addAlert("Set %d chapters of %s to %s.", n, book, toRarity)
}

func (s *Server) bulkShift(r *http.Request, u *userState, book string) {
	from, to, err := parseRange(r, book)
	if err != nil {
		u.addAlert("Invalid Range: %v", err)
		return
	}

	dir := versequiz.ShiftDirection(r.FormValue("direction"))
	n, err := u.library.BulkShiftRarity(r.Context(), book, from, to, dir)
	var rangeErr *versequiz.InvalidRangeError
	switch {
	case errors.As(err, &rangeErr):
		u.addAlert("Invalid Range: %s", rangeErr.Reason)
		return
	case err != nil:
		u.addAlert("Could not shift rarity: %v", err)
		return
	}
	u.addAlert("Shifted %d chapters of %s %s.", n, book, dir)
}

// handleReview routes /review/{mode}, /review/{mode}/answer, /review/{mode}/forfeit
// and /review/{mode}/next
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/review/")
	parts := strings.Split(path, "/")

	mode, err := versequiz.ParseMode(parts[0])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.withUser(w, r, func(session *sessions.Session, u *userState) {
		s.restoreReview(session, u, mode)

		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}
		if action != "" && r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		data := map[string]interface{}{
			"Mode": mode,
		}

		switch action {
		case "":
			if u.review.Current() == nil {
				s.draw(u, mode, data)
			}
		case "next":
			s.draw(u, mode, data)
		case "answer":
			ref, err := versequiz.ParseReference(s.corpus, r.FormValue("answer"))
			if err != nil || ref.Chapter == 0 {
				data["Feedback"] = "Enter a book and chapter, e.g. \"Genesis 3\"."
				break
			}
			result, err := u.review.Submit(r.Context(), ref.Book, ref.Chapter)
			if errors.Is(err, versequiz.ErrNoActiveQuestion) {
				s.draw(u, mode, data)
				break
			}
			if err != nil {
				log.Printf("Failed to submit answer: %v", err)
				data["Feedback"] = "Your answer could not be saved."
				break
			}
			if result.Correct {
				data["Feedback"] = fmt.Sprintf("Correct! (%d pts)", result.PointsAwarded)
				s.reveal(result.Answer, data)
			} else {
				data["Feedback"] = fmt.Sprintf("%s %d is not right. Try again.", ref.Book, ref.Chapter)
			}
		case "forfeit":
			q, err := u.review.Forfeit()
			if err != nil {
				s.draw(u, mode, data)
				break
			}
			data["Feedback"] = "The answer was:"
			s.reveal(q, data)
		default:
			http.NotFound(w, r)
			return
		}

		if _, revealed := data["Answer"]; !revealed {
			data["Question"] = u.review.Current()
			data["Attempt"] = u.review.State().Attempt
		}
		s.saveReview(w, r, session, u)
		s.render(w, "review", u, data)
	})
}

func (s *Server) draw(u *userState, mode versequiz.Mode, data map[string]interface{}) {
	if _, err := u.review.Draw(mode); err != nil {
		if errors.Is(err, versequiz.ErrInsufficientContent) {
			data["Waiting"] = true
			return
		}
		log.Printf("Failed to draw question: %v", err)
		data["Feedback"] = "Could not draw a question."
	}
}

func (s *Server) reveal(q *versequiz.DrawnQuestion, data map[string]interface{}) {
	prev, next := versequiz.ChapterNeighbors(s.corpus, q.Book, q.Chapter)
	data["Answer"] = q
	data["Prev"] = prev
	data["Next"] = next
}

// restoreReview loads the review state from the cookie when it is not already in memory
func (s *Server) restoreReview(session *sessions.Session, u *userState, mode versequiz.Mode) {
	cookie, ok := session.Values["review"].(reviewCookie)
	if !ok || versequiz.Mode(cookie.Mode) != mode {
		if q := u.review.Current(); q != nil && q.Mode != mode {
			u.review.Restore(versequiz.ReviewState{})
		}
		return
	}
	if q := u.review.Current(); q != nil && q.Book == cookie.Book && q.Chapter == cookie.Chapter && q.Verse == cookie.Verse {
		return
	}
	q, err := versequiz.QuestionFor(s.corpus, mode, cookie.Book, cookie.Chapter, cookie.Verse)
	if err != nil {
		versequiz.VerboseLog("Dropping stale review cookie: %v", err)
		u.review.Restore(versequiz.ReviewState{})
		return
	}
	u.review.Restore(versequiz.ReviewState{Question: q, Attempt: cookie.Attempt})
}

func (s *Server) saveReview(w http.ResponseWriter, r *http.Request, session *sessions.Session, u *userState) {
	state := u.review.State()
	if state.Question == nil {
		delete(session.Values, "review")
	} else {
		session.Values["review"] = reviewCookie{
			Mode:    string(state.Question.Mode),
			Book:    state.Question.Book,
			Chapter: state.Question.Chapter,
			Verse:   state.Question.Verse,
			Attempt: state.Attempt,
		}
	}
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
}

// handleRead shows /read/{book}/{chapter} with previous/next navigation
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/read/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	book, err := url.PathUnescape(parts[0])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	chapter, ok := s.corpus.Chapter(book, number)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.withUser(w, r, func(_ *sessions.Session, u *userState) {
		prev, next := versequiz.ChapterNeighbors(s.corpus, book, number)
		s.render(w, "read", u, map[string]interface{}{
			"Book":    book,
			"Chapter": chapter,
			"Prev":    prev,
			"Next":    next,
		})
	})
}
