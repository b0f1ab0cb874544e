package session

// stealthScript masks the usual automation markers. It is installed once
// per session to run on every new document and re-evaluated after error
// page recovery, so a mid-session reload never exposes the defaults.
const stealthScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});
	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
	});
	Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
	if (!window.chrome) {
		window.chrome = { runtime: {} };
	}
	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
	}
	return true;
})()`

// errorPhrases are the fragments a generic failure interstitial shows in
// place of content. Checked lower-cased against the body text.
var errorPhrases = []string{
	"something went wrong",
	"oops",
	"please try again",
	"temporarily unavailable",
	"service unavailable",
	"page not found",
}
