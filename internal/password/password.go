// Package password provides one-way credential hashing. bcrypt embeds a
// per-hash salt and compares in constant time; plaintext passwords are
// never stored or logged.
package password

import "golang.org/x/crypto/bcrypt"

// Hash derives a salted one-way hash of the plaintext password.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext matches the stored hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
