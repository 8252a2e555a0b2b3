// cmd/catalogctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"movie-catalog/internal/clients"
	"movie-catalog/internal/config"
	"movie-catalog/internal/domain"
	"movie-catalog/internal/session"
	"movie-catalog/internal/validation"
)

// catalogClient is the catalog service as seen by the CLI.
type catalogClient interface {
	session.Catalog
	MovieRating(ctx context.Context, id int64) (domain.AggregatedRating, error)
	ListReviews(ctx context.Context, movieID int64) ([]domain.Review, error)
}

type app struct {
	catalog catalogClient
	out     io.Writer
	logger  *slog.Logger
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: catalogctl [-api URL] [-timeout D] <command> [args]

commands:
  genres                               list genres
  genre add <name>                     create a genre
  list [-genre ID]                     list movies, optionally of one genre
  search <query>                       search titles, descriptions and genres
  show <movie-id>                      show a movie with its reviews
  rating <movie-id>                    show the aggregated rating
  reviews [-movie ID]                  list reviews
  review add -movie ID -name N -title T -rating R -comment C
  review edit -movie ID -id REVIEW [-name N] [-title T] [-rating R] [-comment C]
  review delete -movie ID -id REVIEW
  review helpful -movie ID -id REVIEW
  movie add -title T -date YYYY-MM-DD -description D -image FILE -genres 1,2
  movie edit -id ID [-title T] [-date D] [-description D] [-image FILE] [-genres 1,2]
  movie delete -id ID
`)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	global := flag.NewFlagSet("catalogctl", flag.ExitOnError)
	global.Usage = func() { printUsage(os.Stderr) }
	baseURL := global.String("api", cfg.Client.BaseURL, "catalog API base URL")
	timeout := global.Duration("timeout", cfg.Client.Timeout, "per-request timeout")
	verbose := global.Bool("v", false, "debug logging")
	_ = global.Parse(os.Args[1:])
	if err := checkTimeout(*timeout); err != nil {
		fmt.Fprintf(os.Stderr, "catalogctl: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a := &app{
		catalog: clients.New(*baseURL, *timeout, logger),
		out:     os.Stdout,
		logger:  logger,
	}
	if err := a.run(context.Background(), global.Args()); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// checkTimeout rejects request timeouts that would fail every call.
func checkTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("-timeout must be positive, got %s", d)
	}
	return nil
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "genres":
		return a.genres(ctx)
	case "genre":
		if len(rest) < 2 || rest[0] != "add" {
			return errUsage
		}
		return a.addGenre(ctx, strings.Join(rest[1:], " "))
	case "list":
		return a.list(ctx, rest)
	case "search":
		return a.search(ctx, strings.Join(rest, " "))
	case "show":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		return a.show(ctx, id)
	case "rating":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		return a.rating(ctx, id)
	case "reviews":
		return a.reviews(ctx, rest)
	case "review":
		if len(rest) == 0 {
			return errUsage
		}
		return a.review(ctx, rest[0], rest[1:])
	case "movie":
		if len(rest) == 0 {
			return errUsage
		}
		return a.movie(ctx, rest[0], rest[1:])
	default:
		return errUsage
	}
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func parseGenreIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid genre id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printError prints err, listing per-field messages when there are any.
func printError(w io.Writer, err error) {
	fields := map[string]string(nil)
	if verr, ok := validation.AsError(err); ok {
		fmt.Fprintln(w, "invalid input:")
		fields = verr.Fields()
	} else if rerr, ok := clients.AsRemoteError(err); ok {
		fmt.Fprintf(w, "error: %v\n", rerr)
		fields = rerr.Fields
	} else {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
}

func (a *app) genres(ctx context.Context) error {
	genres, err := session.NewBrowser(a.catalog).LoadGenres(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, g := range genres {
		fmt.Fprintf(tw, "%d\t%s\n", g.ID, g.Name)
	}
	return tw.Flush()
}

func (a *app) addGenre(ctx context.Context, name string) error {
	g, err := session.CreateGenre(ctx, a.catalog, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created genre %d: %s\n", g.ID, g.Name)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	genre := fs.Int64("genre", 0, "genre id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	b := session.NewBrowser(a.catalog)
	if _, err := b.LoadGenres(ctx); err != nil {
		return err
	}
	if *genre > 0 {
		if _, err := b.SelectGenre(ctx, *genre); err != nil {
			return err
		}
	} else if _, err := b.Load(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n", b.GenreLabel())
	return a.printMovies(b.Movies())
}

func (a *app) search(ctx context.Context, query string) error {
	movies, err := session.NewBrowser(a.catalog).Search(ctx, query)
	if err != nil {
		return err
	}
	if len(movies) == 0 {
		fmt.Fprintln(a.out, "no movies found")
		return nil
	}
	return a.printMovies(movies)
}

func genreNames(genres []domain.Genre) string {
	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}
	return strings.Join(names, ", ")
}

func (a *app) printMovies(movies []domain.Movie) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tRELEASED\tRATING\tGENRES")
	for _, m := range movies {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\n", m.ID, m.Title, m.ReleaseDate, m.AverageRating, genreNames(m.Genres))
	}
	return tw.Flush()
}

func (a *app) printMovie(m domain.Movie) {
	fmt.Fprintf(a.out, "%s (%s)\n", m.Title, m.ReleaseDate)
	fmt.Fprintf(a.out, "Genres: %s\n", genreNames(m.Genres))
	fmt.Fprintf(a.out, "Rating: %.1f (%d reviews)\n", m.AverageRating, len(m.Reviews))
	if m.Image != "" {
		fmt.Fprintf(a.out, "Image: %s\n", m.Image)
	}
	fmt.Fprintf(a.out, "\n%s\n", m.Description)
	for _, r := range m.Reviews {
		fmt.Fprintf(a.out, "\n#%d %s %s by %s", r.ID, strings.Repeat("*", r.Rating), r.Title, r.ReviewerName)
		if r.VerifiedPurchase {
			fmt.Fprint(a.out, " (verified)")
		}
		if r.EditedAt != nil {
			fmt.Fprintf(a.out, " (edited %s)", r.EditedAt.Format(time.DateOnly))
		}
		fmt.Fprintf(a.out, "\n  %s\n  %d found this helpful\n", r.Comment, r.HelpfulVotes)
	}
}

func (a *app) show(ctx context.Context, id int64) error {
	s, err := session.OpenMovie(ctx, a.catalog, id, a.logger)
	if err != nil {
		return err
	}
	a.printMovie(s.Movie())
	return nil
}

func (a *app) rating(ctx context.Context, id int64) error {
	r, err := a.catalog.MovieRating(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "movie %d: %.2f from %d reviews\n", r.MovieID, r.AverageRating, r.RatingCount)
	return nil
}

func (a *app) reviews(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	movie := fs.Int64("movie", 0, "movie id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	reviews, err := a.catalog.ListReviews(ctx, *movie)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMOVIE\tRATING\tTITLE\tREVIEWER\tHELPFUL")
	for _, r := range reviews {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%d\n", r.ID, r.MovieID, r.Rating, r.Title, r.ReviewerName, r.HelpfulVotes)
	}
	return tw.Flush()
}

// reviewFlags are shared by the review subcommands.
type reviewFlags struct {
	fs      *flag.FlagSet
	movie   *int64
	id      *int64
	name    *string
	title   *string
	rating  *int
	comment *string
}

func newReviewFlags(name string) *reviewFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return &reviewFlags{
		fs:      fs,
		movie:   fs.Int64("movie", 0, "movie id"),
		id:      fs.Int64("id", 0, "review id"),
		name:    fs.String("name", "", "reviewer name"),
		title:   fs.String("title", "", "review title"),
		rating:  fs.Int("rating", 0, "rating 1-5"),
		comment: fs.String("comment", "", "comment"),
	}
}

// fields overlays the flags that were set on base.
func (f *reviewFlags) fields(base domain.ReviewFields) domain.ReviewFields {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "name":
			base.ReviewerName = *f.name
		case "title":
			base.Title = *f.title
		case "rating":
			base.Rating = *f.rating
		case "comment":
			base.Comment = *f.comment
		}
	})
	return base
}

func (a *app) review(ctx context.Context, sub string, args []string) error {
	f := newReviewFlags("review " + sub)
	if err := f.fs.Parse(args); err != nil || *f.movie <= 0 {
		return errUsage
	}
	if sub != "add" && *f.id <= 0 {
		return errUsage
	}

	s, err := session.OpenMovie(ctx, a.catalog, *f.movie, a.logger)
	if err != nil {
		return err
	}

	switch sub {
	case "add":
		r, err := s.AddReview(ctx, f.fields(domain.ReviewFields{}))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "added review %d\n", r.ID)
	case "edit":
		m := s.Movie()
		base := domain.ReviewFields{}
		if i := m.FindReview(*f.id); i >= 0 {
			base = m.Reviews[i].Fields()
		}
		if _, err := s.EditReview(ctx, *f.id, f.fields(base)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "updated review %d\n", *f.id)
	case "delete":
		if err := s.DeleteReview(ctx, *f.id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted review %d\n", *f.id)
	case "helpful":
		if err := s.MarkHelpful(ctx, *f.id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "marked review %d helpful\n", *f.id)
	default:
		return errUsage
	}
	m := s.Movie()
	fmt.Fprintf(a.out, "%s: %.1f (%d reviews)\n", m.Title, m.AverageRating, len(m.Reviews))
	return nil
}

// movieFlags are shared by movie add and movie edit.
type movieFlags struct {
	fs          *flag.FlagSet
	id          *int64
	title       *string
	date        *string
	description *string
	image       *string
	genres      *string
}

func newMovieFlags(name string) *movieFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return &movieFlags{
		fs:          fs,
		id:          fs.Int64("id", 0, "movie id"),
		title:       fs.String("title", "", "title"),
		date:        fs.String("date", "", "release date YYYY-MM-DD"),
		description: fs.String("description", "", "description"),
		image:       fs.String("image", "", "image file"),
		genres:      fs.String("genres", "", "comma-separated genre ids"),
	}
}

// input overlays the flags that were set on base and opens the image file.
// The caller closes the returned closer.
func (f *movieFlags) input(base domain.MovieForm) (clients.MovieInput, io.Closer, error) {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			base.Title = *f.title
		case "date":
			base.ReleaseDate = *f.date
		case "description":
			base.Description = *f.description
		case "genres":
			base.Genres, err = parseGenreIDs(*f.genres)
		}
	})
	if err != nil {
		return clients.MovieInput{}, nil, err
	}
	in := clients.MovieInput{Form: base}
	if *f.image == "" {
		return in, io.NopCloser(strings.NewReader("")), nil
	}
	file, err := os.Open(*f.image)
	if err != nil {
		return clients.MovieInput{}, nil, fmt.Errorf("failed to open image: %w", err)
	}
	in.Image = file
	in.ImageName = filepath.Base(*f.image)
	return in, file, nil
}

func (a *app) movie(ctx context.Context, sub string, args []string) error {
	f := newMovieFlags("movie " + sub)
	if err := f.fs.Parse(args); err != nil {
		return errUsage
	}

	switch sub {
	case "add":
		in, closer, err := f.input(domain.MovieForm{})
		if err != nil {
			return err
		}
		defer closer.Close()
		m, err := session.CreateMovie(ctx, a.catalog, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "created movie %d: %s\n", m.ID, m.Title)
		return nil
	case "edit", "delete":
		if *f.id <= 0 {
			return errUsage
		}
	default:
		return errUsage
	}

	s, err := session.OpenMovie(ctx, a.catalog, *f.id, a.logger)
	if err != nil {
		return err
	}
	if sub == "delete" {
		if err := s.DeleteMovie(ctx); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted movie %d\n", *f.id)
		return nil
	}

	current := s.Movie()
	in, closer, err := f.input(domain.MovieForm{
		Title:       current.Title,
		ReleaseDate: current.ReleaseDate,
		Description: current.Description,
		Image:       current.Image,
		Genres:      current.GenreIDs(),
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	if err := s.UpdateMovie(ctx, in); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated movie %d: %s\n", *f.id, s.Movie().Title)
	return nil
}
