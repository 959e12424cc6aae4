package screen

import (
	"context"
	"sync"

	"github.com/xenking/productos/internal/domain/product"
)

// Catalog is the product repository used by the Products screen.
type Catalog interface {
	List(ctx context.Context) ([]product.Product, error)
	Save(ctx context.Context, draft product.Draft, editing bool) (product.Product, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Refresh()
}

// State is the lifecycle state of the Products screen.
type State int

const (
	Initializing State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Products is the product view model: the current snapshot, the edit form and
// the transient saving and deleting flags.
type Products struct {
	catalog Catalog
	confirm Confirmer
	notify  Notifier

	mu         sync.Mutex
	state      State
	saving     bool
	deleting   bool
	products   []product.Product
	categories []string
	listErr    string
	formErr    string
	draft      product.Draft
	editing    bool
}

// NewProducts creates a Products screen in the Initializing state.
func NewProducts(catalog Catalog, confirm Confirmer, notify Notifier) *Products {
	if confirm == nil {
		confirm = ConfirmFunc(func(string) bool { return true })
	}
	if notify == nil {
		notify = NotifyFunc(func(string) {})
	}
	return &Products{
		catalog: catalog,
		confirm: confirm,
		notify:  notify,
		state:   Initializing,
	}
}

// Load fetches the product list. Failures are kept as the list error and
// also returned.
func (s *Products) Load(ctx context.Context) error {
	products, err := s.catalog.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Ready
	if err != nil {
		s.listErr = Message(err, msgListFailed)
		s.products = nil
		s.categories = nil
		return err
	}
	s.listErr = ""
	s.products = products
	s.categories = product.Categories(products)
	return nil
}

// Refresh drops the cached list and loads it again.
func (s *Products) Refresh(ctx context.Context) error {
	s.catalog.Refresh()
	return s.Load(ctx)
}

// Edit seeds the form with an existing product.
func (s *Products) Edit(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = product.DraftFrom(p)
	s.editing = true
	s.formErr = ""
}

// Cancel resets the form.
func (s *Products) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetForm()
}

// SetField updates one form input.
func (s *Products) SetField(f product.Field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Set(f, value)
}

// Submit saves the form. Only one save runs at a time; a call made while the
// screen is busy is ignored and returns false.
func (s *Products) Submit(ctx context.Context) bool {
	s.mu.Lock()
	if s.saving || s.deleting {
		s.mu.Unlock()
		return false
	}
	draft, editing := s.draft, s.editing
	if err := product.Validate(draft); err != nil {
		s.formErr = Message(err, msgSaveFailed)
		s.mu.Unlock()
		return false
	}
	s.saving = true
	s.mu.Unlock()

	_, err := s.catalog.Save(ctx, draft, editing)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.formErr = Message(err, msgSaveFailed)
		s.mu.Unlock()
		return false
	}
	s.resetForm()
	s.mu.Unlock()

	_ = s.Load(ctx)
	return true
}

// Delete removes a product after confirmation. Failures are reported through
// the Notifier.
func (s *Products) Delete(ctx context.Context, id int64) bool {
	if !s.confirm.Confirm(MsgConfirmDelete) {
		return false
	}

	s.mu.Lock()
	if s.saving || s.deleting {
		s.mu.Unlock()
		return false
	}
	s.deleting = true
	s.mu.Unlock()

	_, err := s.catalog.Remove(ctx, id)

	s.mu.Lock()
	s.deleting = false
	s.mu.Unlock()

	if err != nil {
		s.notify.Notify(Message(err, msgDeleteFailed))
		return false
	}
	_ = s.Load(ctx)
	return true
}

func (s *Products) resetForm() {
	s.draft = product.Draft{}
	s.editing = false
	s.formErr = ""
}

// State returns the lifecycle state.
func (s *Products) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a save or delete is in flight.
func (s *Products) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving || s.deleting
}

// Saving reports whether a save is in flight.
func (s *Products) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Deleting reports whether a delete is in flight.
func (s *Products) Deleting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleting
}

// Products returns a copy of the current snapshot.
func (s *Products) Products() []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]product.Product(nil), s.products...)
}

// Categories returns the categories derived from the current snapshot.
func (s *Products) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

// Draft returns the form contents and whether an existing product is being
// edited.
func (s *Products) Draft() (product.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.editing
}

// ListError is the message of the last failed load.
func (s *Products) ListError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listErr
}

// FormError is the message of the last failed submit.
func (s *Products) FormError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formErr
}

// Notice returns the empty-list notice once loaded without error.
func (s *Products) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ready && s.listErr == "" && len(s.products) == 0 {
		return MsgEmpty
	}
	return ""
}
