package vs

import (
	"github.com/ValentinKolb/vsdb/lib/keys"
)

// Persisted layout below keys.ManagerPrefix:
//
//	'n' | name                      -> branch id
//	's' | branch id | position      -> version id
//	'V' | name                      -> version id
//	'i' | version id                -> name
//	'x' | version id | prefix | key -> (empty), change-set index
//	'd'                             -> default branch name
const (
	tagBranchName  byte = 'n'
	tagSequence    byte = 's'
	tagVersionName byte = 'V'
	tagVersionID   byte = 'i'
	tagChangeSet   byte = 'x'
	tagDefault     byte = 'd'
)

func u64(v uint64) []byte {
	return keys.AppendUint64(nil, v)
}

func branchNameKey(name string) []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagBranchName, []byte(name))
}

func seqKey(id BranchID, pos int) []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagSequence, u64(uint64(id)), u64(uint64(pos)))
}

func versionNameKey(name string) []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagVersionName, []byte(name))
}

func versionIDKey(id VersionID) []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagVersionID, u64(uint64(id)))
}

func changeSetKey(v VersionID, p keys.Prefix, key []byte) []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagChangeSet, u64(uint64(v)), u64(uint64(p)), key)
}

// changeSetRange covers the change set of one version
func changeSetRange(v VersionID) (lower, upper []byte) {
	return keys.PrefixRange(keys.ManagerPrefix, []byte{tagChangeSet}, u64(uint64(v)))
}

// changeSetPrefixRange covers the entries of one collection inside a change set
func changeSetPrefixRange(v VersionID, p keys.Prefix) (lower, upper []byte) {
	return keys.PrefixRange(keys.ManagerPrefix, []byte{tagChangeSet}, u64(uint64(v)), u64(uint64(p)))
}

// decodeChangeSetKey returns the collection prefix and caller key of an index entry
func decodeChangeSetKey(full []byte) (VersionID, keys.Prefix, []byte, error) {
	// skip manager prefix and tag
	if len(full) < keys.PrefixSize+1 {
		return 0, 0, nil, keys.ErrMalformedKey
	}
	rest := full[keys.PrefixSize+1:]
	v, rest, err := keys.DecodeUint64(rest)
	if err != nil {
		return 0, 0, nil, err
	}
	p, rest, err := keys.DecodeUint64(rest)
	if err != nil {
		return 0, 0, nil, err
	}
	return VersionID(v), keys.Prefix(p), rest, nil
}

func defaultKey() []byte {
	return keys.MakeTagged(keys.ManagerPrefix, tagDefault)
}

func tagRange(tag byte) (lower, upper []byte) {
	return keys.PrefixRange(keys.ManagerPrefix, []byte{tag})
}

// dataKey is the versioned data entry of (prefix, key) in version v
func dataKey(p keys.Prefix, key []byte, v VersionID) []byte {
	return keys.AppendVersionedKey(nil, p, key, uint64(v))
}
