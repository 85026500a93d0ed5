package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	"github.com/noah-isme/olimpiada-registration-api/pkg/storage"
)

// memDB is an in-memory stand-in for the Postgres schema. It enforces the same
// unique and foreign key constraints the repositories surface.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int

	grades   map[string]models.Grade
	convs    map[string]models.Convocatoria
	areas    map[string]models.AreaOffering
	levels   map[string]models.LevelOffering
	students map[string]models.Student
	tutors   map[string]models.Tutor

	enrollments map[string]models.Enrollment
	lists       map[string]models.EnrollmentList
	details     map[string]models.ListDetail
	orders      map[string]models.PaymentOrder
	coverage    map[string][]string
	receipts    map[string]models.PaymentReceipt
}

func newMemDB() *memDB {
	return &memDB{
		grades:      map[string]models.Grade{},
		convs:       map[string]models.Convocatoria{},
		areas:       map[string]models.AreaOffering{},
		levels:      map[string]models.LevelOffering{},
		students:    map[string]models.Student{},
		tutors:      map[string]models.Tutor{},
		enrollments: map[string]models.Enrollment{},
		lists:       map[string]models.EnrollmentList{},
		details:     map[string]models.ListDetail{},
		orders:      map[string]models.PaymentOrder{},
		coverage:    map[string][]string{},
		receipts:    map[string]models.PaymentReceipt{},
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%03d", prefix, db.seq)
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type memSnapshot struct {
	students    map[string]models.Student
	tutors      map[string]models.Tutor
	enrollments map[string]models.Enrollment
	lists       map[string]models.EnrollmentList
	details     map[string]models.ListDetail
	orders      map[string]models.PaymentOrder
	coverage    map[string][]string
	receipts    map[string]models.PaymentReceipt
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	coverage := make(map[string][]string, len(db.coverage))
	for k, v := range db.coverage {
		coverage[k] = append([]string(nil), v...)
	}
	return memSnapshot{
		students:    copyMap(db.students),
		tutors:      copyMap(db.tutors),
		enrollments: copyMap(db.enrollments),
		lists:       copyMap(db.lists),
		details:     copyMap(db.details),
		orders:      copyMap(db.orders),
		coverage:    coverage,
		receipts:    copyMap(db.receipts),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students = s.students
	db.tutors = s.tutors
	db.enrollments = s.enrollments
	db.lists = s.lists
	db.details = s.details
	db.orders = s.orders
	db.coverage = s.coverage
	db.receipts = s.receipts
}

func duplicate(constraint string) error {
	return fmt.Errorf("insert: %w", &repository.ConstraintError{Kind: repository.ErrDuplicate, Constraint: constraint, Err: errors.New("unique violation")})
}

func missingRef(constraint string) error {
	return fmt.Errorf("insert: %w", &repository.ConstraintError{Kind: repository.ErrReferenceMissing, Constraint: constraint, Err: errors.New("foreign key violation")})
}

// memTx serialises transactions and rolls back the in-memory state on error.
type memTx struct {
	db *memDB
}

func (t memTx) Run(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// passTx runs fn without isolation.
type passTx struct{}

func (passTx) Run(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	return fn(nil)
}

type memCatalog struct{ *memDB }

func (m memCatalog) GetAreaOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AreaOffering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.areas[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m memCatalog) GetLevelOffering(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LevelOffering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.levels[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m memCatalog) GetConvocatoria(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Convocatoria, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m memCatalog) GetGrade(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grades[id]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func (m memCatalog) ListOfferings(ctx context.Context, convocatoriaID string) ([]models.OfferingListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.OfferingListing
	for _, a := range m.areas {
		if a.ConvocatoriaID != convocatoriaID {
			continue
		}
		listing := models.OfferingListing{AreaOffering: a, Levels: []models.LevelOffering{}}
		for _, l := range m.levels {
			if l.AreaOfferingID == a.ID {
				listing.Levels = append(listing.Levels, l)
			}
		}
		sort.Slice(listing.Levels, func(i, j int) bool { return listing.Levels[i].ID < listing.Levels[j].ID })
		items = append(items, listing)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m memCatalog) CountDependents(ctx context.Context, kind models.CatalogKind, id string) (*models.Dependents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deps := &models.Dependents{Kind: kind, ID: id}
	for _, e := range m.enrollments {
		if (kind == models.CatalogKindAreaOffering && e.AreaOfferingID == id) || (kind == models.CatalogKindLevelOffering && e.LevelOfferingID == id) {
			deps.Enrollments++
		}
	}
	for _, d := range m.details {
		if (kind == models.CatalogKindAreaOffering && d.AreaOfferingID == id) || (kind == models.CatalogKindLevelOffering && d.LevelOfferingID == id) {
			deps.ListDetails++
		}
	}
	return deps, nil
}

type memIdentity struct{ *memDB }

func (m memIdentity) UpsertStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grades[student.GradeID]; !ok {
		return missingRef("students_grade_id_fkey")
	}
	for id, existing := range m.students {
		if existing.NationalID == student.NationalID {
			student.ID = id
			student.CreatedAt = existing.CreatedAt
			m.students[id] = *student
			return nil
		}
	}
	student.ID = m.nextID("student")
	m.students[student.ID] = *student
	return nil
}

func (m memIdentity) GetStudent(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m memIdentity) UpsertTutor(ctx context.Context, exec sqlx.ExtContext, kind models.TutorKind, tutor *models.Tutor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(kind) + "|" + tutor.NationalID
	if existing, ok := m.tutors[key]; ok {
		tutor.ID = existing.ID
	} else {
		tutor.ID = m.nextID(string(kind))
	}
	m.tutors[key] = *tutor
	return nil
}

type memEnrollments struct{ *memDB }

func (m memEnrollments) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == enrollment.StudentID && e.AreaOfferingID == enrollment.AreaOfferingID {
			return duplicate("enrollments_student_area_key")
		}
	}
	if enrollment.AcademicTutorID != nil {
		found := false
		for _, t := range m.tutors {
			if t.ID == *enrollment.AcademicTutorID {
				found = true
			}
		}
		if !found {
			return missingRef("enrollments_academic_tutor_id_fkey")
		}
	}
	if enrollment.State == "" {
		enrollment.State = models.EnrollmentStatePending
	}
	enrollment.ID = m.nextID("enrollment")
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m memEnrollments) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m memEnrollments) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Enrollment{}
	for _, id := range ids {
		if e, ok := m.enrollments[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memEnrollments) detail(e models.Enrollment) models.EnrollmentDetail {
	area := m.areas[e.AreaOfferingID]
	return models.EnrollmentDetail{
		Enrollment:     e,
		ConvocatoriaID: area.ConvocatoriaID,
		AreaName:       area.AreaName,
		LevelName:      m.levels[e.LevelOfferingID].LevelName,
	}
}

func (m memEnrollments) GetDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := m.detail(e)
	return &d, nil
}

func (m memEnrollments) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			items = append(items, m.detail(e))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m memEnrollments) FindByStudentAndArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.AreaOfferingID == areaOfferingID {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memEnrollments) CountCommitments(ctx context.Context, exec sqlx.ExtContext, studentID, convocatoriaID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	enrolled := map[string]bool{}
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			enrolled[e.AreaOfferingID] = true
			if m.areas[e.AreaOfferingID].ConvocatoriaID == convocatoriaID {
				count++
			}
		}
	}
	for _, d := range m.details {
		if d.StudentID == studentID && !enrolled[d.AreaOfferingID] && m.areas[d.AreaOfferingID].ConvocatoriaID == convocatoriaID {
			count++
		}
	}
	return count, nil
}

func (m memEnrollments) UpdateState(ctx context.Context, exec sqlx.ExtContext, ids []string, from []models.EnrollmentState, to models.EnrollmentState) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, id := range ids {
		e, ok := m.enrollments[id]
		if !ok {
			continue
		}
		for _, state := range from {
			if e.State == state {
				e.State = to
				m.enrollments[id] = e
				changed++
				break
			}
		}
	}
	return changed, nil
}

type memLists struct{ *memDB }

func (m memLists) CreateList(ctx context.Context, exec sqlx.ExtContext, list *models.EnrollmentList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[list.ConvocatoriaID]; !ok {
		return missingRef("enrollment_lists_convocatoria_id_fkey")
	}
	list.ID = m.nextID("list")
	m.lists[list.ID] = *list
	return nil
}

func (m memLists) GetList(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.EnrollmentList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lists[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m memLists) CreateDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ListDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.details {
		if d.StudentID == detail.StudentID && d.AreaOfferingID == detail.AreaOfferingID {
			if d.ListID == detail.ListID {
				return duplicate(repository.ConstraintListDetailWithinList)
			}
			return duplicate(repository.ConstraintListDetailAcrossList)
		}
	}
	detail.ID = m.nextID("detail")
	detail.CreatedAt = time.Unix(0, int64(m.seq))
	m.details[detail.ID] = *detail
	return nil
}

func (m memLists) ListDetails(ctx context.Context, exec sqlx.ExtContext, listID string) ([]models.ListDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.ListDetail
	for _, d := range m.details {
		if d.ListID == listID {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (m memLists) GetDetail(ctx context.Context, exec sqlx.ExtContext, listID, detailID string) (*models.ListDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.details[detailID]; ok && d.ListID == listID {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m memLists) DeleteDetail(ctx context.Context, exec sqlx.ExtContext, detailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.details, detailID)
	return nil
}

func (m memLists) ExistsForStudentArea(ctx context.Context, exec sqlx.ExtContext, studentID, areaOfferingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.details {
		if d.StudentID == studentID && d.AreaOfferingID == areaOfferingID {
			return true, nil
		}
	}
	return false, nil
}

type memOrders struct{ *memDB }

func matchesOrigin(o models.PaymentOrder, origin models.Origin) bool {
	if origin.Type == models.OriginList {
		return o.ListID != nil && *o.ListID == origin.ID
	}
	return o.EnrollmentID != nil && *o.EnrollmentID == origin.ID
}

func (m memOrders) Create(ctx context.Context, exec sqlx.ExtContext, order *models.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	origin := order.Origin()
	for _, o := range m.orders {
		if o.Code == order.Code {
			return duplicate(repository.ConstraintOrderCode)
		}
		if o.State == models.OrderStatePending && order.State == models.OrderStatePending && matchesOrigin(o, origin) {
			if origin.Type == models.OriginList {
				return duplicate(repository.ConstraintOrderPendingList)
			}
			return duplicate(repository.ConstraintOrderPendingEnrollment)
		}
	}
	order.ID = m.nextID("order")
	order.UpdatedAt = order.IssuedAt
	m.orders[order.ID] = *order
	return nil
}

func (m memOrders) AddCoverage(ctx context.Context, exec sqlx.ExtContext, orderID string, enrollmentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), enrollmentIDs...)
	sort.Strings(ids)
	m.coverage[orderID] = ids
	return nil
}

func (m memOrders) CoveredEnrollmentIDs(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.coverage[orderID]...), nil
}

func (m memOrders) CoverageForAnchor(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.PaymentOrder
	for _, o := range m.orders {
		o := o
		if o.EnrollmentID == nil || *o.EnrollmentID != enrollmentID {
			continue
		}
		if latest == nil || o.IssuedAt.After(latest.IssuedAt) || (o.IssuedAt.Equal(latest.IssuedAt) && o.ID > latest.ID) {
			latest = &o
		}
	}
	if latest == nil {
		return nil, nil
	}
	return append([]string(nil), m.coverage[latest.ID]...), nil
}

func (m memOrders) OrdersCovering(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) ([]models.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]struct{}, len(enrollmentIDs))
	for _, id := range enrollmentIDs {
		wanted[id] = struct{}{}
	}
	out := []models.PaymentOrder{}
	for orderID, covered := range m.coverage {
		for _, id := range covered {
			if _, ok := wanted[id]; ok {
				out = append(out, m.orders[orderID])
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (m memOrders) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (m memOrders) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentOrder, error) {
	return m.GetByID(ctx, exec, id)
}

func (m memOrders) ExpireStale(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.orders {
		if matchesOrigin(o, origin) && o.State == models.OrderStatePending && o.DueDate.Before(now) {
			o.State = models.OrderStateExpired
			m.orders[id] = o
			n++
		}
	}
	return n, nil
}

func (m memOrders) FindPending(ctx context.Context, exec sqlx.ExtContext, origin models.Origin) (*models.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if matchesOrigin(o, origin) && o.State == models.OrderStatePending {
			return &o, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memOrders) HasLiveOrder(ctx context.Context, exec sqlx.ExtContext, origin models.Origin, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if matchesOrigin(o, origin) && o.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m memOrders) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.OrderState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	o.State = state
	m.orders[id] = o
	return nil
}

func (m memOrders) CodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m memOrders) SumEnrollmentCosts(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, id := range enrollmentIDs {
		if e, ok := m.enrollments[id]; ok {
			total = total.Add(m.areas[e.AreaOfferingID].Cost)
		}
	}
	return total, nil
}

func (m memOrders) SumListCosts(ctx context.Context, exec sqlx.ExtContext, listID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, d := range m.details {
		if d.ListID == listID {
			total = total.Add(m.areas[d.AreaOfferingID].Cost)
		}
	}
	return total, nil
}

type memReceipts struct{ *memDB }

func (m memReceipts) Create(ctx context.Context, exec sqlx.ExtContext, receipt *models.PaymentReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.OrderID == receipt.OrderID && r.ReceiptNumber == receipt.ReceiptNumber {
			return duplicate(repository.ConstraintReceiptNumber)
		}
	}
	receipt.ID = m.nextID("receipt")
	m.receipts[receipt.ID] = *receipt
	return nil
}

func (m memReceipts) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.receipts[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m memReceipts) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PaymentReceipt, error) {
	return m.GetByID(ctx, exec, id)
}

func (m memReceipts) ListByOrder(ctx context.Context, exec sqlx.ExtContext, orderID string) ([]models.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.PaymentReceipt
	for _, r := range m.receipts {
		if r.OrderID == orderID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m memReceipts) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, state models.ReceiptState, reviewedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return sql.ErrNoRows
	}
	if state == models.ReceiptStateVerified {
		for otherID, other := range m.receipts {
			if otherID != id && other.OrderID == r.OrderID && other.State == models.ReceiptStateVerified {
				return duplicate(repository.ConstraintReceiptVerifiedOrder)
			}
		}
	}
	r.State = state
	r.ReviewedAt = &reviewedAt
	m.receipts[id] = r
	return nil
}

func (m memReceipts) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.receipts, id)
	return nil
}

// Fixture identifiers.
const (
	convOpen   = "conv-open"
	convClosed = "conv-closed"
	areaA1     = "area-a1"
	areaA2     = "area-a2"
	areaA3     = "area-a3"
	areaClosed = "area-closed"
	levelL1    = "level-l1"
	levelL2    = "level-l2"
	levelL3    = "level-l3"
	levelLow   = "level-low"
	levelShut  = "level-closed"
	grade5     = "grade-5"
	studentS2  = "student-s2"
	studentS3  = "student-s3"
	unitU1     = "unit-u1"
)

var fixtureNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func (db *memDB) seed() {
	db.grades[grade5] = models.Grade{ID: grade5, Name: "5to", Ordinal: 5}
	db.convs[convOpen] = models.Convocatoria{ID: convOpen, Name: "Olimpiada 2026",
		StartsAt: fixtureNow.AddDate(0, -1, 0), EndsAt: fixtureNow.AddDate(0, 2, 0), MaxAreasPerStudent: 2}
	db.convs[convClosed] = models.Convocatoria{ID: convClosed, Name: "Olimpiada 2025",
		StartsAt: fixtureNow.AddDate(-1, 0, 0), EndsAt: fixtureNow.AddDate(0, -6, 0), MaxAreasPerStudent: 2}

	db.areas[areaA1] = models.AreaOffering{ID: areaA1, ConvocatoriaID: convOpen, AreaID: "math", AreaName: "Matematica", Cost: decimal.NewFromInt(100)}
	db.areas[areaA2] = models.AreaOffering{ID: areaA2, ConvocatoriaID: convOpen, AreaID: "physics", AreaName: "Fisica", Cost: decimal.NewFromInt(50)}
	db.areas[areaA3] = models.AreaOffering{ID: areaA3, ConvocatoriaID: convOpen, AreaID: "chem", AreaName: "Quimica", Cost: decimal.NewFromInt(70)}
	db.areas[areaClosed] = models.AreaOffering{ID: areaClosed, ConvocatoriaID: convClosed, AreaID: "math", AreaName: "Matematica", Cost: decimal.NewFromInt(90)}

	db.levels[levelL1] = models.LevelOffering{ID: levelL1, AreaOfferingID: areaA1, LevelName: "Primer nivel", MinOrdinal: 4, MaxOrdinal: 6}
	db.levels[levelLow] = models.LevelOffering{ID: levelLow, AreaOfferingID: areaA1, LevelName: "Inicial", MinOrdinal: 1, MaxOrdinal: 3}
	db.levels[levelL2] = models.LevelOffering{ID: levelL2, AreaOfferingID: areaA2, LevelName: "Unico", MinOrdinal: 1, MaxOrdinal: 12}
	db.levels[levelL3] = models.LevelOffering{ID: levelL3, AreaOfferingID: areaA3, LevelName: "Unico", MinOrdinal: 1, MaxOrdinal: 12}
	db.levels[levelShut] = models.LevelOffering{ID: levelShut, AreaOfferingID: areaClosed, LevelName: "Unico", MinOrdinal: 1, MaxOrdinal: 12}

	db.students[studentS2] = models.Student{ID: studentS2, NationalID: "22222222", FirstNames: "Sara", LastNames: "Quispe", GradeID: grade5, EducationalUnitID: unitU1, LegalTutorID: "legal-x"}
	db.students[studentS3] = models.Student{ID: studentS3, NationalID: "33333333", FirstNames: "Tomas", LastNames: "Mamani", GradeID: grade5, EducationalUnitID: unitU1, LegalTutorID: "legal-x"}
}

// harness wires every service over one memDB with a controllable clock.
type harness struct {
	db      *memDB
	clock   time.Time
	metrics *MetricsService
	docs    *storage.LocalStorage
	signer  *storage.SignedURLSigner

	identities    *IdentityService
	enrollments   *EnrollmentService
	orders        *PaymentOrderService
	registrations *RegistrationService
	receipts      *PaymentReceiptService
	lists         *EnrollmentListService
	catalog       *CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newMemDB()
	db.seed()
	docs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := &harness{db: db, clock: fixtureNow, metrics: NewMetricsService(), docs: docs}
	now := func() time.Time { return h.clock }
	h.signer = storage.NewSignedURLSigner("test-secret", time.Minute)

	validate := validator.New()
	logger := zap.NewNop()
	tx := memTx{db: db}

	h.identities = NewIdentityService(memIdentity{db}, validate, logger)
	h.enrollments = NewEnrollmentService(memEnrollments{db}, memCatalog{db}, memIdentity{db}, memLists{db}, tx, h.metrics, validate, logger)
	h.enrollments.now = now
	h.orders = NewPaymentOrderService(memOrders{db}, memEnrollments{db}, memLists{db}, memReceipts{db}, tx, h.metrics, validate, logger, PaymentOrderConfig{TTL: 72 * time.Hour})
	h.orders.now = now
	h.registrations = NewRegistrationService(h.identities, h.enrollments, h.orders, tx, validate, logger)
	h.lists = NewEnrollmentListService(memLists{db}, h.enrollments, memEnrollments{db}, memCatalog{db}, memOrders{db}, tx, validate, logger)
	h.lists.now = now
	h.receipts = NewPaymentReceiptService(memReceipts{db}, memOrders{db}, h.enrollments, h.lists, docs, h.signer, nil, tx, h.metrics, validate, logger, PaymentReceiptConfig{APIPrefix: "/api/v1"})
	h.receipts.now = now
	h.catalog = NewCatalogService(memCatalog{db}, nil, time.Minute, logger)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) enrollment(t *testing.T, id string) models.Enrollment {
	t.Helper()
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	e, ok := h.db.enrollments[id]
	require.True(t, ok, "enrollment %s missing", id)
	return e
}

func (h *harness) order(t *testing.T, id string) models.PaymentOrder {
	t.Helper()
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	o, ok := h.db.orders[id]
	require.True(t, ok, "order %s missing", id)
	return o
}
