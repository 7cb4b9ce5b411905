package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// StudentCache wraps a Store with a TTL cache for student lookups. Students
// are read on every answer submission but change rarely, so caching them
// takes the hot path off the database.
type StudentCache struct {
	app.Store
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedStudent
}

type cachedStudent struct {
	student   domain.Student
	expiresAt time.Time
}

func NewStudentCache(store app.Store, ttl time.Duration) *StudentCache {
	return &StudentCache{
		Store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedStudent),
	}
}

func (c *StudentCache) GetStudent(ctx context.Context, studentID string) (domain.Student, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[studentID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.student, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(studentID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[studentID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.student, nil
		}
		c.mu.RUnlock()

		student, err := c.Store.GetStudent(ctx, studentID)
		if err != nil {
			return domain.Student{}, err
		}

		c.mu.Lock()
		c.cache[studentID] = cachedStudent{
			student:   student,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return student, nil
	})
	if err != nil {
		return domain.Student{}, err
	}
	return result.(domain.Student), nil
}

// SaveStudent writes through and drops any stale cache entry.
func (c *StudentCache) SaveStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	saved, err := c.Store.SaveStudent(ctx, student)
	if err != nil {
		return domain.Student{}, err
	}
	c.mu.Lock()
	delete(c.cache, saved.ID)
	c.mu.Unlock()
	return saved, nil
}

func (c *StudentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
