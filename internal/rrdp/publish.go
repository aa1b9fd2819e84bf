package rrdp

// Publisher commits a Plan to the target directory: the snapshot body
// and any new delta body are written and fsynced under a temporary name
// and renamed into place, and only then is the notification.xml written
// last and renamed over the existing one, so a reader never observes a
// notification pointing at a body that isn't there yet.
type Publisher interface {
	Publish(plan Plan) error
}

// Cleaner removes on-disk session/serial directories that the current
// notification no longer references. Service.RunClean refuses to call it
// (via SessionStore.HasEverPublished) if the target has never produced a
// notification, since that almost certainly means the target path is
// wrong.
type Cleaner interface {
	Clean() (removed int, err error)
}
