package main

import (
	"context"
	"embed"
	"encoding/gob"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"versequiz"

	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	config    *versequiz.Config
	corpus    *versequiz.Corpus
	db        *versequiz.DB
	remote    versequiz.RemoteScoreStore
	store     *sessions.CookieStore
	users     *userCache
	templates map[string]*template.Template
}

// reviewCookie is the compact review state kept in the session. The question is
// rebuilt from the corpus on each request so the cookie stays small.
type reviewCookie struct {
	Mode    string
	Book    string
	Chapter int
	Verse   int
	Attempt int
}

func init() {
	gob.Register(reviewCookie{})
}

func main() {
	config := versequiz.LoadConfig()
	versequiz.SetVerbose(config.Verbose)

	corpus, err := versequiz.LoadCorpus(config.CorpusPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	log.Printf("Loaded %d books from %s", len(corpus.Books()), config.CorpusPath)

	// Initialize database
	db, err := versequiz.OpenDB(config.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}
	if err := db.EnsureCorpus(context.Background(), corpus); err != nil {
		log.Fatalf("Failed to reconcile stored classifications with corpus: %v", err)
	}

	var remote versequiz.RemoteScoreStore
	if config.Redis.Address != "" {
		redisStore := versequiz.NewRedisScoreStore(context.Background(), config.Redis)
		defer redisStore.Close()
		remote = redisStore
	} else {
		log.Println("REDIS_ADDR not set, scores are kept locally only")
	}

	store := sessions.NewCookieStore([]byte(config.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 365,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	templates := parseTemplates()

	server := &Server{
		config:    config,
		corpus:    corpus,
		db:        db,
		remote:    remote,
		store:     store,
		templates: templates,
	}
	server.users = newUserCache(30*time.Minute, server.loadUser)

	log.Printf("Starting server on port %s", config.Port)
	log.Fatal(http.ListenAndServe(":"+config.Port, server.routes()))
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/books", s.handleBooks)
	mux.HandleFunc("/books/", s.handleBook)
	mux.HandleFunc("/review/", s.handleReview)
	mux.HandleFunc("/read/", s.handleRead)
	return mux
}

func parseTemplates() map[string]*template.Template {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"printf": fmt.Sprintf,
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"rarities": func() []versequiz.Rarity {
			return versequiz.Rarities
		},
	}

	templates := make(map[string]*template.Template)
	templateFiles := []struct {
		name string
		file string
	}{
		{"home", "templates/home.html"},
		{"books", "templates/books.html"},
		{"book", "templates/book.html"},
		{"review", "templates/review.html"},
		{"read", "templates/read.html"},
	}
	for _, tmpl := range templateFiles {
		templates[tmpl.name] = template.Must(template.New(tmpl.name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", tmpl.file))
	}
	return templates
}
