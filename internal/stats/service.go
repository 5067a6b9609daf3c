// Package stats computes the admin dashboard figures.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/Kyz7/blog/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	chartMonths  = 3
	popularLimit = 5
	dateLayout   = "2006-01-02"
)

type Dashboard struct {
	TotalPosts           int64         `json:"totalPosts"`
	PublishedPosts       int64         `json:"publishedPosts"`
	DraftPosts           int64         `json:"draftPosts"`
	NewPostsThisMonth    int64         `json:"newPostsThisMonth"`
	TotalComments        int64         `json:"totalComments"`
	ApprovedComments     int64         `json:"approvedComments"`
	PendingComments      int64         `json:"pendingComments"`
	NewCommentsThisMonth int64         `json:"newCommentsThisMonth"`
	TotalCategories      int64         `json:"totalCategories"`
	TotalTags            int64         `json:"totalTags"`
	PostsGrowthRate      int64         `json:"postsGrowthRate"`
	ApprovalRate         int64         `json:"approvalRate"`
	Charts               []ChartPoint  `json:"charts"`
	PopularPosts         []PopularPost `json:"popularPosts"`
}

type ChartPoint struct {
	Date     string `json:"date"`
	Posts    int    `json:"posts"`
	Comments int    `json:"comments"`
}

type PopularPost struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	CommentsCount int64  `json:"commentsCount"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Dashboard runs the independent reads concurrently and derives the rates from them.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := startOfMonth.AddDate(0, -1, 0)
	chartStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, -chartMonths, 0)

	var (
		d            Dashboard
		postsLast    int64
		postDates    []time.Time
		commentDates []time.Time
		popular      []PopularPost
	)

	g, ctx := errgroup.WithContext(ctx)
	count := func(model interface{}, dst *int64, query string, args ...interface{}) {
		g.Go(func() error {
			q := s.db.WithContext(ctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			return q.Count(dst).Error
		})
	}

	count(&models.Post{}, &d.TotalPosts, "")
	count(&models.Post{}, &d.PublishedPosts, "published = ?", true)
	count(&models.Post{}, &d.NewPostsThisMonth, "published = ? AND created_at >= ?", true, startOfMonth)
	count(&models.Post{}, &postsLast, "published = ? AND created_at >= ? AND created_at < ?", true, lastMonthStart, startOfMonth)
	count(&models.Comment{}, &d.TotalComments, "")
	count(&models.Comment{}, &d.ApprovedComments, "is_approved = ?", true)
	count(&models.Comment{}, &d.NewCommentsThisMonth, "is_approved = ? AND created_at >= ?", true, startOfMonth)
	count(&models.Category{}, &d.TotalCategories, "")
	count(&models.Tag{}, &d.TotalTags, "")

	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Post{}).
			Where("published = ? AND created_at >= ?", true, chartStart).
			Pluck("created_at", &postDates).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Comment{}).
			Where("is_approved = ? AND created_at >= ?", true, chartStart).
			Pluck("created_at", &commentDates).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&models.Post{}).
			Select("posts.id, posts.title, posts.slug, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count").
			Where("posts.published = ?", true).
			Order("comments_count DESC, posts.id ASC").
			Limit(popularLimit).
			Scan(&popular).Error
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.DraftPosts = d.TotalPosts - d.PublishedPosts
	d.PendingComments = d.TotalComments - d.ApprovedComments
	d.PostsGrowthRate = growthRate(d.NewPostsThisMonth, postsLast)
	d.ApprovalRate = percentage(d.ApprovedComments, d.TotalComments)
	d.Charts = dailyChart(chartStart, now, postDates, commentDates)
	if popular == nil {
		popular = []PopularPost{}
	}
	d.PopularPosts = popular
	return &d, nil
}

func growthRate(current, previous int64) int64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int64(math.Round(float64(current-previous) / float64(previous) * 100))
}

func percentage(part, total int64) int64 {
	if total == 0 {
		return 0
	}
	return int64(math.Round(float64(part) / float64(total) * 100))
}

// dailyChart buckets timestamps by UTC day, with a zero entry for every day
// between from and to inclusive.
func dailyChart(from, to time.Time, posts, comments []time.Time) []ChartPoint {
	postsByDay := map[string]int{}
	for _, t := range posts {
		postsByDay[t.UTC().Format(dateLayout)]++
	}
	commentsByDay := map[string]int{}
	for _, t := range comments {
		commentsByDay[t.UTC().Format(dateLayout)]++
	}

	points := []ChartPoint{}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		points = append(points, ChartPoint{
			Date:     key,
			Posts:    postsByDay[key],
			Comments: commentsByDay[key],
		})
	}
	return points
}
