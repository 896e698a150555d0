package storage

import "github.com/sirupsen/logrus"

// badgerLogrus routes BadgerDB's internal logging through the store's
// logrus entry so database noise carries the same fields as the rest of
// the crawl's output. Satisfies badger.Logger.
type badgerLogrus struct {
	entry *logrus.Entry
}

func newBadgerLogrus(entry *logrus.Entry) *badgerLogrus {
	return &badgerLogrus{entry: entry}
}

func (l *badgerLogrus) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l *badgerLogrus) Warningf(f string, v ...interface{}) { l.entry.Warningf(f, v...) }
func (l *badgerLogrus) Infof(f string, v ...interface{})    { l.entry.Infof(f, v...) }
func (l *badgerLogrus) Debugf(f string, v ...interface{})   { l.entry.Debugf(f, v...) }
