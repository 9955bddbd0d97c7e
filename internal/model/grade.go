package model

// GradeItem is one gradable column within a host course. The exporter
// treats it as opaque except for the owning course.
type GradeItem struct {
	ID       int64  `db:"id"`
	CourseID int64  `db:"course_id"`
	Name     string `db:"name"`
}

// User is a gradable participant pulled from the host.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	IDNumber string `db:"idnumber"`
	Email    string `db:"email"`
}

// Grade is one user's current grade for a grade item. A nil FinalGrade
// means "not gradable yet" and must be skipped on export, never
// exported as zero.
type Grade struct {
	UserID     int64    `db:"user_id"`
	FinalGrade *float64 `db:"final_grade"`
}

// Graded reports whether the grade carries an exportable value.
func (g *Grade) Graded() bool {
	return g != nil && g.FinalGrade != nil
}

// UserSnapshot is an ordered user-id -> user mapping captured once per
// export run. Go maps do not keep order, so the fetch order is kept
// alongside the index.
type UserSnapshot struct {
	IDs   []int64
	Users map[int64]*User
}

func NewUserSnapshot() *UserSnapshot {
	return &UserSnapshot{Users: make(map[int64]*User)}
}

func (s *UserSnapshot) Add(u *User) {
	if _, ok := s.Users[u.ID]; !ok {
		s.IDs = append(s.IDs, u.ID)
	}
	s.Users[u.ID] = u
}

func (s *UserSnapshot) Get(id int64) (*User, bool) {
	u, ok := s.Users[id]
	return u, ok
}

func (s *UserSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.IDs)
}

// GradeSnapshot is the ordered grade set for one run. Export iterates
// grades in this order.
type GradeSnapshot struct {
	Order  []int64
	Grades map[int64]*Grade
}

func NewGradeSnapshot() *GradeSnapshot {
	return &GradeSnapshot{Grades: make(map[int64]*Grade)}
}

func (s *GradeSnapshot) Add(g *Grade) {
	if _, ok := s.Grades[g.UserID]; !ok {
		s.Order = append(s.Order, g.UserID)
	}
	s.Grades[g.UserID] = g
}

func (s *GradeSnapshot) Get(userID int64) (*Grade, bool) {
	g, ok := s.Grades[userID]
	return g, ok
}

func (s *GradeSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Order)
}

// Each calls fn for every grade in fetch order.
func (s *GradeSnapshot) Each(fn func(*Grade)) {
	for _, id := range s.Order {
		fn(s.Grades[id])
	}
}
