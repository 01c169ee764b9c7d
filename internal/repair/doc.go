// Package repair turns a reconciliation result into the changes the local
// log needs: which local versions to demote and which winning versions to
// adopt, and applies them to a storage.Store.
package repair
