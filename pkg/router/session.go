package router

// Session supplies the active network. ok is false when there is none.
type Session interface {
	ChainID() (chainID uint64, ok bool)
}

// StaticSession is a fixed network; zero means no active network.
type StaticSession uint64

func (s StaticSession) ChainID() (uint64, bool) {
	return uint64(s), s != 0
}
